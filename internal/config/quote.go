package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds configuration for offline price and swap quotes.
type QuoteConfig struct {
	Checkpoint string
	Pool       string
	Base       string
	Quote      string
	Amount     string
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into
// QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DEXSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkpoint", "./data/pools.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return QuoteConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Checkpoint: v.GetString("checkpoint"),
		Pool:       v.GetString("pool"),
		Base:       v.GetString("base"),
		Quote:      v.GetString("quote"),
		Amount:     v.GetString("amount"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
