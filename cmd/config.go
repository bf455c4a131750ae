package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tomlrepo "github.com/bnema/penphinmind/internal/adapters/repo/toml"
	"github.com/bnema/penphinmind/internal/adapters/transport"
	"github.com/bnema/penphinmind/internal/application"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	configDirName  = ".penphin"
	configFileName = "config"
	envPrefix      = "PENPHIN"

	keyMindsPath         = "minds.path"
	keyMindsOverlay      = "minds.overlay"
	keySecretsDir        = "secrets.dir"
	keySecretsBackend    = "secrets.backend"
	keyConnectTimeout    = "connection.connect_timeout"
	keyMaxAttempts       = "connection.max_attempts"
	keyBackoffInitial    = "connection.backoff_initial"
	keyBackoffMultiplier = "connection.backoff_multiplier"
	keyBackoffMax        = "connection.backoff_max"
	keyTurnTimeout       = "session.turn_timeout"
	keyStallTimeout      = "session.stall_timeout"
	keyLogLevel          = "log.level"
	keyLogFile           = "log.file"

	secretsBackendChain = "chain"
	secretsBackendFile  = "file"
	secretsBackendPass  = "pass"
)

// loadConfig resolves settings from defaults, the config file and PENPHIN_*
// environment variables, in increasing precedence. A missing default config
// file is not an error; a missing explicit one is.
func loadConfig(explicitPath string) (*viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, configDirName)

	v := viper.New()
	connection := application.DefaultConnectionPolicy()
	session := application.DefaultSessionPolicy()
	v.SetDefault(keyMindsPath, filepath.Join(baseDir, "minds.toml"))
	v.SetDefault(keyMindsOverlay, "")
	v.SetDefault(tomlrepo.StatePathKey, filepath.Join(baseDir, "state.toml"))
	v.SetDefault(keySecretsDir, filepath.Join(baseDir, "secrets"))
	v.SetDefault(keySecretsBackend, secretsBackendChain)
	v.SetDefault(keyConnectTimeout, transport.DefaultConnectTimeout)
	v.SetDefault(keyMaxAttempts, connection.MaxAttempts)
	v.SetDefault(keyBackoffInitial, connection.BackoffInitial)
	v.SetDefault(keyBackoffMultiplier, connection.BackoffMultiplier)
	v.SetDefault(keyBackoffMax, connection.BackoffMax)
	v.SetDefault(keyTurnTimeout, session.TurnTimeout)
	v.SetDefault(keyStallTimeout, session.StallTimeout)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyLogFile, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("toml")
		v.AddConfigPath(baseDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

func connectionPolicy(v *viper.Viper) application.ConnectionPolicy {
	return application.ConnectionPolicy{
		MaxAttempts:       v.GetInt(keyMaxAttempts),
		BackoffInitial:    v.GetDuration(keyBackoffInitial),
		BackoffMultiplier: v.GetFloat64(keyBackoffMultiplier),
		BackoffMax:        v.GetDuration(keyBackoffMax),
	}
}

func sessionPolicy(v *viper.Viper) application.SessionPolicy {
	return application.SessionPolicy{
		TurnTimeout:  v.GetDuration(keyTurnTimeout),
		StallTimeout: v.GetDuration(keyStallTimeout),
	}
}

// newLogger writes console-encoded logs to stderr, or to log.file when set.
func newLogger(v *viper.Viper, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	level := zapcore.WarnLevel
	if raw := v.GetString(keyLogLevel); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", keyLogLevel, raw, err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if path := v.GetString(keyLogFile); path != "" {
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger, nil
}
