package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/penphinmind/internal/adapters/config/mindfile"
	statusadapter "github.com/bnema/penphinmind/internal/adapters/render/status"
	tomlrepo "github.com/bnema/penphinmind/internal/adapters/repo/toml"
	chainstore "github.com/bnema/penphinmind/internal/adapters/secrets/chain"
	filestore "github.com/bnema/penphinmind/internal/adapters/secrets/file"
	passstore "github.com/bnema/penphinmind/internal/adapters/secrets/pass"
	"github.com/bnema/penphinmind/internal/adapters/transport"
	"github.com/bnema/penphinmind/internal/adapters/wire"
	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries what every command shares. Settings and the logger are set up
// before any command runs; the mind session core is only built on first use,
// so commands like version and simulate work without a minds file.
type app struct {
	configPath string
	verbose    bool

	cfg    *viper.Viper
	logger *zap.Logger

	statusRenderer func([]application.MindStatus, statusadapter.RenderOptions) (string, error)
	now            func() time.Time

	once    sync.Once
	service *application.Service
	state   *tomlrepo.StateStore
	err     error
}

func newApp() *app {
	return &app{
		logger:         zap.NewNop(),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}
}

func (a *app) setup() error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, a.verbose)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// Service wires the mind session core on first call.
func (a *app) Service(ctx context.Context) (*application.Service, error) {
	a.once.Do(func() {
		a.service, a.state, a.err = a.wireService(ctx)
	})
	return a.service, a.err
}

func (a *app) wireService(ctx context.Context) (*application.Service, *tomlrepo.StateStore, error) {
	if a.cfg == nil {
		return nil, nil, errors.New("configuration not loaded")
	}

	mindsPath := a.cfg.GetString(keyMindsPath)
	mindsConfig, err := mindfile.Load(mindsPath, a.cfg.GetString(keyMindsOverlay))
	if err != nil {
		return nil, nil, fmt.Errorf("load minds: %w", err)
	}
	registry, err := application.LoadRegistry(mindsConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("load minds from %s: %w", mindsPath, err)
	}

	secrets, err := a.secretStore()
	if err != nil {
		return nil, nil, fmt.Errorf("wire secret store: %w", err)
	}

	state, err := tomlrepo.NewStateStore(a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire state store: %w", err)
	}

	dialer := transport.NewDialer(
		transport.WithConnectTimeout(a.cfg.GetDuration(keyConnectTimeout)),
		transport.WithLogger(a.logger.Named("transport")),
	)
	connections := application.NewConnectionManager(registry, dialer, connectionPolicy(a.cfg),
		application.WithConnectionLogger(a.logger.Named("connections")),
	)
	orchestrator := application.NewOrchestrator(registry, connections, wire.ForKind,
		application.WithSecretStore(secrets),
		application.WithSessionPolicy(sessionPolicy(a.cfg)),
		application.WithOrchestratorLogger(a.logger.Named("turns")),
	)
	switcher := application.NewSwitcher(ctx, registry, connections,
		application.WithActiveMindStore(state),
		application.WithSwitcherLogger(a.logger.Named("switcher")),
	)

	a.logger.Debug("mind session ready",
		zap.String("minds", mindsPath),
		zap.Int("count", len(registry.IDs())),
		zap.String("session", orchestrator.SessionID()))

	return application.NewService(registry, connections, orchestrator, switcher, secrets), state, nil
}

func (a *app) secretStore() (ports.SecretStore, error) {
	dir := a.cfg.GetString(keySecretsDir)

	switch backend := a.cfg.GetString(keySecretsBackend); backend {
	case secretsBackendChain, "":
		store, err := chainstore.NewPassFirstWithFileFallback(dir, a.logger.Named("secrets"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case secretsBackendFile:
		return filestore.NewStore(dir), nil
	case secretsBackendPass:
		return passstore.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported %s %q (want chain, file or pass)", keySecretsBackend, backend)
	}
}

// close tears down connections opened during the command and flushes logs.
func (a *app) close() error {
	var errs []error
	if a.service != nil {
		if err := a.service.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connections: %w", err))
		}
	}
	// Sync on a console fd reports EINVAL on some platforms.
	_ = a.logger.Sync()

	return errors.Join(errs...)
}
