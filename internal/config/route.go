package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RouteConfig holds configuration for offline multi-hop simulation.
type RouteConfig struct {
	Checkpoint string
	Hops       []string
	Amount     string
	LogLevel   string
}

// LoadRoute merges config file, environment variables, and flags into
// RouteConfig.
func LoadRoute(cfgFile string, flags *pflag.FlagSet) (RouteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DEXSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkpoint", "./data/pools.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return RouteConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return RouteConfig{}, err
	}

	cfg := RouteConfig{
		Checkpoint: v.GetString("checkpoint"),
		Hops:       getStringSlice(v, "hops"),
		Amount:     v.GetString("amount"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
