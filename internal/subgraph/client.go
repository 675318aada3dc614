package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// pageSize is the subgraph's maximum page for snapshot queries.
const pageSize = 1000

// Config holds one protocol's subgraph endpoint and pair addresses.
type Config struct {
	URL          string
	Protocol     model.Protocol
	Pairs        map[model.Pair]string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client queries one protocol's subgraph over HTTP GraphQL.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("subgraph url is required")
	}
	for _, pair := range model.AllPairs() {
		if cfg.Pairs[pair] == "" {
			return nil, fmt.Errorf("missing %s pair address for %s", pair, cfg.Protocol)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// LiquidityEvents fetches position snapshots for one pair starting at the
// given offset, paging until a short page. Events that fail to parse are
// logged and skipped; a single bad record must not block ingestion.
func (c *Client) LiquidityEvents(ctx context.Context, pair model.Pair, skip int) ([]model.PositionEvent, error) {
	address := c.cfg.Pairs[pair]
	events := make([]model.PositionEvent, 0, pageSize)

	for {
		var payload struct {
			Snapshots []rawSnapshot `json:"liquidityPositionSnapshots"`
		}
		err := c.query(ctx, liquidityEventsQuery, map[string]interface{}{
			"pairAddress": address,
			"skip":        skip,
			"first":       pageSize,
		}, &payload)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshots %s %s: %w", c.cfg.Protocol, pair, err)
		}

		for _, raw := range payload.Snapshots {
			ev, err := toPositionEvent(raw)
			if err != nil {
				c.logger.Warn("skip malformed snapshot",
					zap.String("protocol", c.cfg.Protocol.String()),
					zap.String("pair", pair.String()),
					zap.Uint64("block", raw.Block),
					zap.Error(err))
				continue
			}
			events = append(events, ev)
		}

		if len(payload.Snapshots) < pageSize {
			return events, nil
		}
		skip += pageSize
	}
}

// PairInfo returns the live reserves for all three pairs.
func (c *Client) PairInfo(ctx context.Context) (map[model.Pair]model.PairInfo, error) {
	var payload struct {
		XorEth *rawPairInfo `json:"xorEth"`
		XorVal *rawPairInfo `json:"xorVal"`
		ValEth *rawPairInfo `json:"valEth"`
	}
	err := c.query(ctx, pairInfoQuery, c.pairVariables(nil), &payload)
	if err != nil {
		return nil, fmt.Errorf("fetch pair info %s: %w", c.cfg.Protocol, err)
	}

	info := make(map[model.Pair]model.PairInfo, 3)
	for pair, raw := range map[model.Pair]*rawPairInfo{
		model.PairXORETH: payload.XorEth,
		model.PairXORVAL: payload.XorVal,
		model.PairVALETH: payload.ValEth,
	} {
		if raw == nil {
			info[pair] = model.PairInfo{}
			continue
		}
		parsed, err := toPairInfo(*raw)
		if err != nil {
			return nil, fmt.Errorf("pair info %s %s: %w", c.cfg.Protocol, pair, err)
		}
		info[pair] = parsed
	}
	return info, nil
}

// PairReserveUSD returns each pair's USD reserve at a historical block.
func (c *Client) PairReserveUSD(ctx context.Context, block uint64) (map[model.Pair]decimal.Decimal, error) {
	var payload struct {
		XorEth *struct {
			ReserveUSD string `json:"reserveUSD"`
		} `json:"xorEth"`
		XorVal *struct {
			ReserveUSD string `json:"reserveUSD"`
		} `json:"xorVal"`
		ValEth *struct {
			ReserveUSD string `json:"reserveUSD"`
		} `json:"valEth"`
	}
	err := c.query(ctx, pairReserveQuery, c.pairVariables(map[string]interface{}{"block": block}), &payload)
	if err != nil {
		return nil, fmt.Errorf("fetch pair reserves %s: %w", c.cfg.Protocol, err)
	}

	reserves := make(map[model.Pair]decimal.Decimal, 3)
	for pair, raw := range map[model.Pair]*struct {
		ReserveUSD string `json:"reserveUSD"`
	}{
		model.PairXORETH: payload.XorEth,
		model.PairXORVAL: payload.XorVal,
		model.PairVALETH: payload.ValEth,
	} {
		if raw == nil {
			reserves[pair] = decimal.Zero
			continue
		}
		parsed, err := parseDecimal(raw.ReserveUSD)
		if err != nil {
			return nil, fmt.Errorf("pair reserve %s %s: %w", c.cfg.Protocol, pair, err)
		}
		reserves[pair] = parsed
	}
	return reserves, nil
}

// UserPositions returns the user's live position per pair; pairs without a
// position map to the zero value.
func (c *Client) UserPositions(ctx context.Context, address string) (map[model.Pair]model.UserPosition, error) {
	var payload struct {
		User *struct {
			LiquidityPositions []rawUserPosition `json:"liquidityPositions"`
		} `json:"user"`
	}
	pairAddresses := make([]string, 0, 3)
	for _, pair := range model.AllPairs() {
		pairAddresses = append(pairAddresses, c.cfg.Pairs[pair])
	}
	err := c.query(ctx, userPositionsQuery, map[string]interface{}{
		"userAddress":   strings.ToLower(address),
		"pairAddresses": pairAddresses,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("fetch user positions %s: %w", c.cfg.Protocol, err)
	}

	positions := make(map[model.Pair]model.UserPosition, 3)
	for _, pair := range model.AllPairs() {
		positions[pair] = model.UserPosition{}
	}
	if payload.User == nil {
		return positions, nil
	}

	for _, raw := range payload.User.LiquidityPositions {
		for _, pair := range model.AllPairs() {
			if !strings.Contains(strings.ToLower(raw.ID), strings.ToLower(c.cfg.Pairs[pair])) {
				continue
			}
			parsed, err := toUserPosition(raw)
			if err != nil {
				return nil, fmt.Errorf("user position %s %s: %w", c.cfg.Protocol, pair, err)
			}
			positions[pair] = parsed
			break
		}
	}
	return positions, nil
}

func (c *Client) pairVariables(extra map[string]interface{}) map[string]interface{} {
	variables := map[string]interface{}{
		"xorEth": c.cfg.Pairs[model.PairXORETH],
		"xorVal": c.cfg.Pairs[model.PairXORVAL],
		"valEth": c.cfg.Pairs[model.PairVALETH],
	}
	for key, value := range extra {
		variables[key] = value
	}
	return variables
}

type graphqlError struct {
	Message string `json:"message"`
}

// query posts a GraphQL request and decodes the data payload into out,
// retrying transient failures with exponential backoff.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	return withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("subgraph request failed",
				zap.String("protocol", c.cfg.Protocol.String()), zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("subgraph returned status %d", resp.StatusCode)
			c.logger.Warn("subgraph request failed",
				zap.String("protocol", c.cfg.Protocol.String()), zap.Error(err))
			return err
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []graphqlError  `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(envelope.Errors) > 0 {
			return fmt.Errorf("subgraph error: %s", envelope.Errors[0].Message)
		}
		if len(envelope.Data) == 0 {
			return fmt.Errorf("subgraph returned no data")
		}
		return json.Unmarshal(envelope.Data, out)
	})
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
