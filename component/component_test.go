package component

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/entitypipe/logger"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
	stopWait time.Duration
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "start:"+f.name)
	}
	return f.startErr
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "stop:"+f.name)
	}
	if f.stopWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.stopWait):
		}
	}
	return f.stopErr
}

func (f *fakeComponent) Health(ctx context.Context) Health { return f.health }

func newTestRegistry(opts ...RegistryOption) *Registry {
	return NewRegistry(append([]RegistryOption{WithLogger(logger.Nop())}, opts...)...)
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(&fakeComponent{name: "engine"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&fakeComponent{name: "engine"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if got := r.Get("engine"); got == nil || got.Name() != "engine" {
		t.Errorf("expected registered component, got %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartStopOrder(t *testing.T) {
	r := newTestRegistry()
	var events []string
	for _, name := range []string{"redis", "engine", "http"} {
		_ = r.Register(&fakeComponent{name: name, events: &events})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := "start:redis,start:engine,start:http,stop:http,stop:engine,stop:redis"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if len(r.All()) != 3 {
		t.Errorf("expected 3 components, got %d", len(r.All()))
	}
}

func TestStartAllRollsBack(t *testing.T) {
	r := newTestRegistry()
	var events []string
	_ = r.Register(&fakeComponent{name: "redis", events: &events})
	_ = r.Register(&fakeComponent{name: "engine", events: &events, startErr: fmt.Errorf("bad definition")})
	_ = r.Register(&fakeComponent{name: "http", events: &events})

	err := r.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start engine") {
		t.Fatalf("expected start failure for engine, got %v", err)
	}

	want := "start:redis,start:engine,stop:redis"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	events = nil
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected nothing left to stop, got %v", events)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := newTestRegistry(WithStopTimeout(20 * time.Millisecond))
	_ = r.Register(&fakeComponent{name: "kafka", stopErr: fmt.Errorf("flush failed")})
	_ = r.Register(&fakeComponent{name: "http", stopWait: time.Second})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error from StopAll")
	}
	msg := err.Error()
	if !strings.Contains(msg, "failed to stop kafka") || !strings.Contains(msg, "failed to stop http") {
		t.Errorf("expected both failures, got %q", msg)
	}
}

func TestHealthAllAndOverall(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&fakeComponent{name: "engine", health: Health{Name: "engine", Status: StatusHealthy}})
	_ = r.Register(&fakeComponent{name: "redis", health: Health{Name: "redis", Status: StatusDegraded}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if got := Overall(results); got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}

	tests := []struct {
		name  string
		items []Health
		want  HealthStatus
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Health{{Status: StatusHealthy}}, StatusHealthy},
		{"unhealthy wins", []Health{{Status: StatusDegraded}, {Status: StatusUnhealthy}}, StatusUnhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overall(tc.items); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
