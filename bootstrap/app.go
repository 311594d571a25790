package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/entitypipe/component"
	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/config"
	"github.com/kbukum/entitypipe/engine"
	"github.com/kbukum/entitypipe/httpapi"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
	"github.com/kbukum/entitypipe/version"
)

// App wires an engine, the optional HTTP server and OpenTelemetry from a
// config.Config and runs them as components.
//
//	app, err := bootstrap.NewApp(ctx, &cfg, catalog)
//	if err != nil {
//	    return err
//	}
//	return app.Run(ctx)
type App struct {
	Cfg        *config.Config
	Logger     *logger.Logger
	Components *component.Registry
	Engine     *engine.Engine
	// HTTP is nil unless http.enabled is set.
	HTTP *httpapi.Server

	gracefulTimeout time.Duration
	onStart         []Hook
	onReady         []Hook
	onStop          []Hook
}

// NewApp applies defaults to cfg, validates it, initializes logging and
// the configured exporters, and registers the components. Nothing is
// started until Run or RunTask.
func NewApp(ctx context.Context, cfg *config.Config, catalog *loader.Catalog, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	o := resolveOptions(opts)

	app := &App{
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		app.Logger = logger.New(&cfg.Logging, cfg.Name)
		logger.SetGlobalLogger(app.Logger)
	}
	app.Components = component.NewRegistry(component.WithLogger(app.Logger.WithComponent("components")))

	inst, err := app.initObservability(ctx)
	if err != nil {
		return nil, err
	}

	gates := condition.NewRegistry(condition.NewExprFactory(condition.WithMaxPrograms(cfg.Condition.CacheSize)))
	app.Engine = engine.New(catalog, cfg.Pipelines,
		engine.WithLogger(app.Logger.WithComponent("engine")),
		engine.WithGates(gates),
		engine.WithInstrumentation(inst),
	)
	if err := app.Components.Register(app.Engine); err != nil {
		return nil, err
	}

	if cfg.HTTP.Enabled {
		var httpOpts []httpapi.Option
		if inst.Metrics != nil {
			httpOpts = append(httpOpts, httpapi.WithMetrics(inst.Metrics))
		}
		httpOpts = append(httpOpts, httpapi.WithHealth(app.Components.HealthAll))
		app.HTTP = httpapi.New(cfg.HTTP, cfg.Name, app.Engine, app.Logger, httpOpts...)
		if err := app.Components.Register(app.HTTP); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// initObservability starts the exporters enabled in the config and
// registers their shutdown as stop hooks.
func (a *App) initObservability(ctx context.Context) (loader.Instrumentation, error) {
	var inst loader.Instrumentation
	cfg := a.Cfg
	if !cfg.Pipelines.Instrument && !cfg.Observability.Tracing.Enabled && !cfg.Observability.Metrics.Enabled {
		return inst, nil
	}
	if cfg.Pipelines.Instrument {
		inst.Logger = a.Logger.WithComponent("processors")
	}

	if t := cfg.Observability.Tracing; t.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    cfg.Name,
			ServiceVersion: version.GetVersionInfo().Version,
			Environment:    cfg.Environment,
			Endpoint:       t.Endpoint,
			Insecure:       t.Insecure,
			SampleRate:     t.SampleRate,
		})
		if err != nil {
			return inst, fmt.Errorf("init tracer: %w", err)
		}
		a.OnStop(tp.Shutdown)
		inst.Tracing = true
	}

	if m := cfg.Observability.Metrics; m.Enabled {
		mp, err := observability.InitMeter(ctx, observability.MeterConfig{
			ServiceName:    cfg.Name,
			ServiceVersion: version.GetVersionInfo().Version,
			Environment:    cfg.Environment,
			Endpoint:       m.Endpoint,
			Insecure:       m.Insecure,
			Interval:       m.Interval,
		})
		if err != nil {
			return inst, fmt.Errorf("init meter: %w", err)
		}
		a.OnStop(mp.Shutdown)
		metrics, err := observability.NewMetrics(mp.Meter(cfg.Name))
		if err != nil {
			return inst, fmt.Errorf("create metrics: %w", err)
		}
		inst.Metrics = metrics
	}
	return inst, nil
}

// ReadyCheck reports every component that is not healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts every component, blocks until SIGINT, SIGTERM or ctx is
// done, and shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts every component, runs task and shuts down. The task
// context is cancelled on SIGINT or SIGTERM.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields(
		"name", a.Cfg.Name,
		"environment", a.Cfg.Environment,
		"version", version.GetVersionInfo().String(),
	))

	if err := a.Components.StartAll(ctx); err != nil {
		// StartAll rolls back what it started; the exporters still need
		// flushing.
		_ = runHooks(context.Background(), a.onStop)
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return stderrors.Join(fmt.Errorf("onStart hook failed: %w", err), a.stop())
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.ErrorFields("ready_check", err))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return stderrors.Join(fmt.Errorf("onReady hook failed: %w", err), a.stop())
	}

	a.Logger.Info("application started", logger.Fields(
		logger.FieldDuration, time.Since(start).Milliseconds(),
		"pipelines", len(a.Engine.Pipelines()),
	))
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// stop runs the stop hooks and stops every component within the
// graceful timeout.
func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	a.Logger.Info("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))
	componentsErr := a.Components.StopAll(ctx)
	hooksErr := runHooks(ctx, a.onStop)
	if err := stderrors.Join(componentsErr, hooksErr); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.ErrorFields("shutdown", err))
		return err
	}
	a.Logger.Info("application stopped")
	return nil
}
