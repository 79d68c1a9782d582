package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/steward"
	"github.com/aretw0/steward/pkg/adapters/file"
	"github.com/aretw0/steward/pkg/adapters/memory"
	"github.com/aretw0/steward/pkg/adapters/process"
	"github.com/aretw0/steward/pkg/adapters/redis"
	"github.com/aretw0/steward/pkg/adapters/system"
	"github.com/aretw0/steward/pkg/observability"
	"github.com/aretw0/steward/pkg/persistence/middleware"
	"github.com/aretw0/steward/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// session holds everything one command invocation wires together.
type session struct {
	engine  *steward.Engine
	store   ports.ReportStore
	logger  *slog.Logger
	metrics *observability.Metrics
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// newSession builds the engine with standard CLI conventions.
// metrics may be nil.
func newSession(opts Options, metrics *observability.Metrics, extra ...steward.Option) (*session, error) {
	logger, err := createLogger(opts)
	if err != nil {
		return nil, usageError(err)
	}
	s := &session{logger: logger, metrics: metrics}

	facts, err := createHost(opts, logger)
	if err != nil {
		return nil, err
	}

	engineOpts := []steward.Option{
		steward.WithLogger(logger),
		steward.WithHost(hostName(opts)),
		steward.WithDryRun(opts.DryRun),
	}
	if metrics != nil || opts.Debug {
		engineOpts = append(engineOpts, steward.WithLifecycleHooks(observability.Hooks(metrics, logger)))
	}

	var client *backend.Client
	if opts.Store == StoreRedis || opts.LockRedis {
		client = backend.NewClient(&backend.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		s.closers = append(s.closers, client.Close)
	}

	switch opts.Store {
	case "", StoreMemory:
		s.store = memory.NewStore()
	case StoreFile:
		s.store = file.New(opts.StoreDir)
	case StoreRedis:
		s.store = redis.NewFromClient(client, redis.WithTTL(opts.ReportTTL))
	default:
		_ = s.Close()
		return nil, usageError(fmt.Errorf("unknown store %q (want memory, file or redis)", opts.Store))
	}
	if opts.ReportKey != "" {
		cfg, err := middleware.ParseKeys(opts.ReportKey, opts.ReportFallbackKeys)
		if err != nil {
			_ = s.Close()
			return nil, usageError(err)
		}
		s.store = middleware.Chain(s.store, middleware.NewEncryptionMiddleware(cfg))
	}
	engineOpts = append(engineOpts, steward.WithStore(s.store))

	if opts.LockRedis {
		engineOpts = append(engineOpts, steward.WithLocker(redis.NewLocker(client, ""), opts.LockTTL))
	}

	s.engine, err = steward.New(facts, append(engineOpts, extra...)...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Debug("engine ready", "store", opts.Store, "simulate", opts.Simulate != "", "lock", opts.LockRedis)
	return s, nil
}

// createHost returns the simulated host when --simulate is set, the real one
// otherwise.
func createHost(opts Options, logger *slog.Logger) (ports.HostFactProvider, error) {
	if opts.Simulate != "" {
		snap, err := memory.LoadSnapshot(opts.Simulate)
		if err != nil {
			return nil, usageError(err)
		}
		logger.Info("simulating host", "facts", opts.Simulate)
		return memory.NewHostFromSnapshot(snap), nil
	}

	var overrides map[string]process.CommandConfig
	if opts.Commands != "" {
		cmds, err := process.LoadCommands(opts.Commands)
		if err != nil {
			return nil, usageError(err)
		}
		overrides = cmds
	}
	runner := system.NewRunner(overrides, process.WithLogger(logger))
	return system.New(runner, system.WithLogger(logger)), nil
}

func hostName(opts Options) string {
	if opts.Host != "" {
		return opts.Host
	}
	if opts.Simulate != "" {
		return "simulated"
	}
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
