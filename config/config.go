// Package config loads the engine's process-wide configuration: the
// shared object store's IPC socket path, the worker's RPC endpoint,
// and a set of feature toggles, reported verbatim by GET_ENGINE_CONFIG.
// The teacher has no centralized config loader of its own (it is a
// library, not a server), so this loader is grounded on the retrieval
// pack's evalgo-org-eve CLI, which uses viper for exactly this
// "toggles + paths + endpoint, from file/env/flag" shape.
package config

import (
	"encoding/json"

	"github.com/spf13/viper"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Config is the engine's process-wide configuration record.
type Config struct {
	VineyardIPCSocket string          `json:"vineyard_ipc_socket" mapstructure:"vineyard_ipc_socket"`
	RPCEndpoint       string          `json:"rpc_endpoint" mapstructure:"rpc_endpoint"`
	FeatureToggles    map[string]bool `json:"feature_toggles" mapstructure:"feature_toggles"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() Config {
	return Config{
		VineyardIPCSocket: "/tmp/vineyard.sock",
		RPCEndpoint:       "0.0.0.0:9797",
		FeatureToggles:    map[string]bool{},
	}
}

// Load reads configuration from configPath (if non-empty), layered
// over environment variables prefixed GRAPE_ and the Default values.
// An absent configPath is not an error; a present but unreadable or
// malformed one is.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRAPE")
	v.AutomaticEnv()
	v.SetDefault("vineyard_ipc_socket", Default().VineyardIPCSocket)
	v.SetDefault("rpc_endpoint", Default().RPCEndpoint)
	v.SetDefault("feature_toggles", map[string]bool{})

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, grapeerr.Wrap(grapeerr.InvalidValue, err, "config: read %q", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, grapeerr.Wrap(grapeerr.InvalidValue, err, "config: unmarshal")
	}
	if cfg.FeatureToggles == nil {
		cfg.FeatureToggles = map[string]bool{}
	}
	return cfg, nil
}

// JSON serializes c, the form GET_ENGINE_CONFIG reports on the wire.
func (c Config) JSON() (string, error) {
	blob, err := json.Marshal(c)
	if err != nil {
		return "", grapeerr.Wrap(grapeerr.IllegalState, err, "config: marshal")
	}
	return string(blob), nil
}
