package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/entitypipe/config"
	"github.com/kbukum/entitypipe/demo"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	defs := `
pipelines:
  - name: cleanup
    entity_type: demo.Entity
    processors:
      - name: state-filter
        type: demo.EntityStateFilter
`
	if err := os.WriteFile(path, []byte(defs), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return &config.Config{
		ServiceConfig: config.ServiceConfig{Name: "test", Environment: "production"},
		Pipelines:     config.PipelinesConfig{Files: []string{path}, Instrument: true},
	}
}

func testCatalog(t *testing.T) *loader.Catalog {
	t.Helper()
	cat := loader.NewCatalog()
	if err := demo.RegisterCatalog(cat); err != nil {
		t.Fatalf("register: %v", err)
	}
	return cat
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := &config.Config{ServiceConfig: config.ServiceConfig{Name: "test"}}
	if _, err := NewApp(context.Background(), cfg, testCatalog(t), WithLogger(logger.Nop())); err == nil {
		t.Fatal("expected an error without pipeline sources")
	}
}

func TestNewApp_Components(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewApp(context.Background(), cfg, testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.HTTP != nil {
		t.Error("expected no HTTP server when disabled")
	}
	if got := len(app.Components.All()); got != 1 {
		t.Errorf("expected 1 component, got %d", got)
	}

	cfg = testConfig(t)
	cfg.HTTP.Enabled = true
	app, err = NewApp(context.Background(), cfg, testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.HTTP == nil {
		t.Fatal("expected an HTTP server")
	}
	if got := len(app.Components.All()); got != 2 {
		t.Errorf("expected 2 components, got %d", got)
	}
}

func TestRunTask(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stopped bool
	app.OnStop(func(context.Context) error {
		stopped = true
		return nil
	})

	var state pipeline.ResponseState
	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		input, _ := json.Marshal(demo.Entity{ID: "a", Active: demo.Deleted})
		res, err := app.Engine.Run(ctx, "cleanup", input, nil)
		if err != nil {
			return err
		}
		state = res.State
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != pipeline.NullData {
		t.Errorf("expected NullData, got %s", state)
	}
	if !stopped {
		t.Error("expected stop hooks to run")
	}
	if app.Engine.Set() != nil {
		t.Error("expected the engine to be stopped")
	}
}

func TestRunTask_TaskError(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := app.RunTask(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected the task error, got %v", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error {
		cancel()
		return nil
	})
	if err := app.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartupFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipelines.Files = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	app, err := NewApp(context.Background(), cfg, testCatalog(t), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := app.Run(context.Background()); err == nil {
		t.Fatal("expected startup to fail")
	}
}
