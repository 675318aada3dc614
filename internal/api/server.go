package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sora-xor/sora-farming-gateway/internal/chain"
	"github.com/sora-xor/sora-farming-gateway/internal/model"
	"github.com/sora-xor/sora-farming-gateway/internal/reward"
	"github.com/sora-xor/sora-farming-gateway/internal/storage/postgres"
	"github.com/sora-xor/sora-farming-gateway/internal/subgraph"
)

// Server exposes game progress, user rewards, and live liquidity over HTTP.
type Server struct {
	addr      string
	store     *postgres.Store
	uniswap   *subgraph.Client
	mooniswap *subgraph.Client
	logger    *zap.Logger

	httpServer *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(
	addr string,
	store *postgres.Store,
	uniswapClient *subgraph.Client,
	mooniswapClient *subgraph.Client,
	logger *zap.Logger,
) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if uniswapClient == nil || mooniswapClient == nil {
		return nil, fmt.Errorf("both subgraph clients are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:      addr,
		store:     store,
		uniswap:   uniswapClient,
		mooniswap: mooniswapClient,
		logger:    logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/app/info", s.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/app/status", s.handleSetStatus).Methods(http.MethodPost)
	router.HandleFunc("/reward/{address}", s.handleReward).Methods(http.MethodGet)
	router.HandleFunc("/liquidity/{address}", s.handleLiquidity).Methods(http.MethodGet)
	router.Use(s.loggingMiddleware)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type infoResponse struct {
	Status             int       `json:"status"`
	PSWAPPaid          string    `json:"pswapPaid"`
	StartBlock         uint64    `json:"startBlock"`
	LastBlock          uint64    `json:"lastBlock"`
	FormulaUpdateBlock uint64    `json:"formulaUpdateBlock"`
	LastUpdate         time.Time `json:"lastUpdate"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, ok, err := s.store.GetInfo(r.Context())
	if err != nil {
		s.serverError(w, "load game info", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "game not initialized")
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		Status:             info.Status,
		PSWAPPaid:          info.PSWAP.String(),
		StartBlock:         info.StartBlock,
		LastBlock:          info.LastBlock,
		FormulaUpdateBlock: info.FormulaUpdateBlock,
		LastUpdate:         info.LastUpdate,
	})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status *int `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"status\": 0|1}")
		return
	}
	if *req.Status != 0 && *req.Status != 1 {
		writeError(w, http.StatusBadRequest, "status must be 0 or 1")
		return
	}
	if err := s.store.SetStatus(r.Context(), *req.Status); err != nil {
		s.serverError(w, "set status", err)
		return
	}
	s.logger.Info("game status changed", zap.Int("status", *req.Status))
	writeJSON(w, http.StatusOK, map[string]int{"status": *req.Status})
}

type rewardResponse struct {
	Address   string            `json:"address"`
	Reward    string            `json:"reward"`
	LastBlock uint64            `json:"lastBlock"`
	Liquidity liquidityResponse `json:"liquidity"`
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	address, ok := requestAddress(w, r)
	if !ok {
		return
	}

	user, found, err := s.store.GetUser(r.Context(), address)
	if err != nil {
		s.serverError(w, "load user", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	liquidity, err := s.userLiquidity(r.Context(), address)
	if err != nil {
		s.serverError(w, "load liquidity", err)
		return
	}

	writeJSON(w, http.StatusOK, rewardResponse{
		Address:   user.Address,
		Reward:    user.Reward.String(),
		LastBlock: user.LastBlock,
		Liquidity: liquidity,
	})
}

type pairLiquidity struct {
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Percent string `json:"percent"`
}

type liquidityResponse struct {
	Address string                   `json:"address"`
	Pairs   map[string]pairLiquidity `json:"pairs"`
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	address, ok := requestAddress(w, r)
	if !ok {
		return
	}

	liquidity, err := s.userLiquidity(r.Context(), address)
	if err != nil {
		s.serverError(w, "load liquidity", err)
		return
	}
	writeJSON(w, http.StatusOK, liquidity)
}

// userLiquidity combines the user's live positions across both protocols
// into per-pair token amounts and pool share.
func (s *Server) userLiquidity(ctx context.Context, address string) (liquidityResponse, error) {
	uniPairs, err := s.uniswap.PairInfo(ctx)
	if err != nil {
		return liquidityResponse{}, fmt.Errorf("uniswap pair info: %w", err)
	}
	mooPairs, err := s.mooniswap.PairInfo(ctx)
	if err != nil {
		return liquidityResponse{}, fmt.Errorf("mooniswap pair info: %w", err)
	}
	uniPositions, err := s.uniswap.UserPositions(ctx, address)
	if err != nil {
		return liquidityResponse{}, fmt.Errorf("uniswap positions: %w", err)
	}
	mooPositions, err := s.mooniswap.UserPositions(ctx, address)
	if err != nil {
		return liquidityResponse{}, fmt.Errorf("mooniswap positions: %w", err)
	}

	out := liquidityResponse{
		Address: address,
		Pairs:   make(map[string]pairLiquidity, len(model.AllPairs())),
	}
	for _, pair := range model.AllPairs() {
		pool := reward.CalculateLiquidity(
			uniPairs[pair], mooPairs[pair],
			uniPositions[pair], mooPositions[pair])
		out.Pairs[pair.String()] = pairLiquidity{
			Token0:  pool.Token0.String(),
			Token1:  pool.Token1.String(),
			Percent: pool.Percent.Mul(decimal.NewFromInt(100)).String(),
		}
	}
	return out, nil
}

func requestAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := strings.ToLower(mux.Vars(r)["address"])
	if !chain.IsAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return address, true
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(started)))
	})
}
