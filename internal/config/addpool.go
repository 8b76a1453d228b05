package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddPoolConfig holds configuration for registering a pool in the checkpoint.
type AddPoolConfig struct {
	RPCURL     string
	Checkpoint string
	Kind       string
	Address    string
	FeeBps     uint16
	Amplifier  uint64
	LogLevel   string
}

// LoadAddPool merges config file, environment variables, and flags into
// AddPoolConfig.
func LoadAddPool(cfgFile string, flags *pflag.FlagSet) (AddPoolConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DEXSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checkpoint", "./data/pools.json")
	v.SetDefault("kind", "uniswap_v2")
	v.SetDefault("fee-bps", 30)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return AddPoolConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return AddPoolConfig{}, err
	}

	feeBps := v.GetUint32("fee-bps")
	if feeBps > 10000 {
		return AddPoolConfig{}, fmt.Errorf("fee-bps %d exceeds 10000", feeBps)
	}

	cfg := AddPoolConfig{
		RPCURL:     v.GetString("rpc"),
		Checkpoint: v.GetString("checkpoint"),
		Kind:       v.GetString("kind"),
		Address:    v.GetString("address"),
		FeeBps:     uint16(feeBps),
		Amplifier:  v.GetUint64("amp"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
