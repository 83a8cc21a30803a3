package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	ChainName       string
	Settlement      string
	OrderbookURLs   []string
	PGDSN           string
	Out             string
	Checkpoint      string
	PollInterval    time.Duration
	FinalityLag     uint64
	Workers         int
	MaxRetries      int
	RetryBackoff    time.Duration
	CoingeckoAPIKey string
	MoralisAPIKey   string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-name", "mainnet")
	v.SetDefault("settlement", "0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	v.SetDefault("out", "./data/audit.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("finality-lag", uint64(67))
	v.SetDefault("workers", 4)
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
		RPCURL:          v.GetString("rpc"),
		ChainName:       v.GetString("chain-name"),
		Settlement:      v.GetString("settlement"),
		OrderbookURLs:   getStringSlice(v, "orderbook-url"),
		PGDSN:           v.GetString("pg-dsn"),
		Out:             v.GetString("out"),
		Checkpoint:      v.GetString("checkpoint"),
		PollInterval:    v.GetDuration("poll-interval"),
		FinalityLag:     v.GetUint64("finality-lag"),
		Workers:         v.GetInt("workers"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		CoingeckoAPIKey: v.GetString("coingecko-api-key"),
		MoralisAPIKey:   v.GetString("moralis-api-key"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
