// Package config loads node settings from flags, BJD_* environment variables
// and an optional <home>/config/bjd.toml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "BJD"

	FlagHome          = "home"
	FlagABCIAddr      = "abci-addr"
	FlagTransport     = "transport"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagFinalityDepth = "finality-depth"
	FlagDBBackend     = "db-backend"
	FlagRedisAddr     = "redis-addr"
	FlagRedisPrefix   = "redis-prefix"
	FlagRecordFile    = "record-file"
)

type Config struct {
	Home      string `mapstructure:"home"`
	ABCIAddr  string `mapstructure:"abci-addr"`
	Transport string `mapstructure:"transport"` // socket | grpc
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"` // plain | json
	// FinalityDepth is counted in ledger positions; 0 keeps every checkpoint.
	FinalityDepth uint64 `mapstructure:"finality-depth"`
	DBBackend     string `mapstructure:"db-backend"`
	// RedisAddr enables the pub/sub notification sink when set.
	RedisAddr   string `mapstructure:"redis-addr"`
	RedisPrefix string `mapstructure:"redis-prefix"`
	// RecordFile, when set, receives every finalized tx as a JSON-lines feed.
	RecordFile string `mapstructure:"record-file"`
}

func Default() Config {
	return Config{
		Home:          ".bjd",
		ABCIAddr:      "tcp://127.0.0.1:26658",
		Transport:     "socket",
		LogLevel:      "info",
		LogFormat:     "plain",
		FinalityDepth: 0,
		DBBackend:     "goleveldb",
		RedisPrefix:   "bjd",
	}
}

// BindFlags registers the node flags on cmd with their defaults and binds them
// to v.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	d := Default()
	f := cmd.PersistentFlags()
	f.String(FlagHome, d.Home, "node home directory (data under <home>/data)")
	f.String(FlagABCIAddr, d.ABCIAddr, "ABCI listen address")
	f.String(FlagTransport, d.Transport, "ABCI transport (socket|grpc)")
	f.String(FlagLogLevel, d.LogLevel, "log level (trace|debug|info|warn|error)")
	f.String(FlagLogFormat, d.LogFormat, "log format (plain|json)")
	f.Uint64(FlagFinalityDepth, d.FinalityDepth, "keep checkpoints this many ledger positions deep (0 keeps all)")
	f.String(FlagDBBackend, d.DBBackend, "cosmos-db backend (goleveldb|pebbledb|memdb)")
	f.String(FlagRedisAddr, d.RedisAddr, "redis address for episode notifications (empty disables)")
	f.String(FlagRedisPrefix, d.RedisPrefix, "redis channel prefix")
	f.String(FlagRecordFile, d.RecordFile, "append finalized txs to this JSON-lines file")
	return v.BindPFlags(f)
}

// Load resolves the configuration bound to v and validates it.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	home := v.GetString(FlagHome)
	if home == "" {
		home = Default().Home
	}
	v.SetConfigFile(filepath.Join(home, "config", "bjd.toml"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("home must be set")
	}
	switch c.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	switch c.LogFormat {
	case "plain", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.DBBackend {
	case "goleveldb", "pebbledb", "memdb":
	default:
		return fmt.Errorf("unsupported db backend %q", c.DBBackend)
	}
	if c.RedisAddr != "" && c.RedisPrefix == "" {
		return errors.New("redis prefix must be set when redis is enabled")
	}
	return nil
}

// DataDir holds the episode database.
func (c Config) DataDir() string { return filepath.Join(c.Home, "data") }

// NewLogger builds the node logger writing to w.
func (c Config) NewLogger(w io.Writer) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := []log.Option{log.LevelOption(lvl)}
	if c.LogFormat == "json" {
		opts = append(opts, log.OutputJSONOption(), log.ColorOption(false))
	}
	return log.NewLogger(w, opts...), nil
}
