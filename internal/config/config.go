package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string
	PGDSN  string

	UniswapURL     string
	MooniswapURL   string
	UniswapPairs   map[model.Pair]string
	MooniswapPairs map[model.Pair]string

	ListenAddr   string
	SyncInterval time.Duration

	// StartBlock -1 means "current chain head at first run".
	StartBlock         int64
	FormulaUpdateBlock uint64
	BlockOffset        uint64

	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FARMING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("uniswap-url", "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v2")
	v.SetDefault("mooniswap-url", "https://api.thegraph.com/subgraphs/name/krboktv/mooniswap-liquidity")

	v.SetDefault("uniswap-pair-xor-eth", "0x01962144d41415cca072900fe87bbe2992a99f10")
	v.SetDefault("uniswap-pair-xor-val", "0x4fd3f9811224bf5a87bbaf002a345560c2d98d76")
	v.SetDefault("uniswap-pair-val-eth", "0x64c9cfa988bbe7b2df671af345bcf8fa904cebb8")
	v.SetDefault("mooniswap-pair-xor-eth", "0xb90d8c0c2ace705fad8ad7e447dcf3e858c20448")
	v.SetDefault("mooniswap-pair-xor-val", "0x215470102a05b02a3a2898f317b5382f380afc0e")
	v.SetDefault("mooniswap-pair-val-eth", "0xdd9354112cd8e0b4b5e8823cb0701b2ea19c19e4")

	v.SetDefault("listen", ":8080")
	v.SetDefault("sync-interval", 5*time.Minute)
	v.SetDefault("start-block", int64(-1))
	v.SetDefault("block-offset", uint64(5))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		PGDSN:              v.GetString("pg-dsn"),
		UniswapURL:         v.GetString("uniswap-url"),
		MooniswapURL:       v.GetString("mooniswap-url"),
		UniswapPairs:       pairAddresses(v, "uniswap"),
		MooniswapPairs:     pairAddresses(v, "mooniswap"),
		ListenAddr:         v.GetString("listen"),
		SyncInterval:       v.GetDuration("sync-interval"),
		StartBlock:         v.GetInt64("start-block"),
		FormulaUpdateBlock: v.GetUint64("formula-update-block"),
		BlockOffset:        v.GetUint64("block-offset"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

func pairAddresses(v *viper.Viper, protocol string) map[model.Pair]string {
	pairs := make(map[model.Pair]string, 3)
	for _, pair := range model.AllPairs() {
		key := fmt.Sprintf("%s-pair-%s", protocol, pair)
		addr := strings.ToLower(strings.TrimSpace(v.GetString(key)))
		if addr != "" {
			pairs[pair] = addr
		}
	}
	return pairs
}
