package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kbukum/entitypipe/demo"
	"github.com/kbukum/entitypipe/source"
)

const definitions = "../../demo/testdata/pipelines.yaml"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "pipectl ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "", "validate", definitions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "OK: 3 pipeline(s) valid") {
		t.Errorf("unexpected output %q", out)
	}
	for _, name := range []string{"entity-cleanup", "entity-aging", "entity-batch"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %s in output", name)
		}
	}
}

func TestValidate_MissingFile(t *testing.T) {
	if _, err := execute(t, "", "validate", "testdata/missing.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_NoArgs(t *testing.T) {
	if _, err := execute(t, "", "validate"); err == nil {
		t.Fatal("expected error without arguments")
	}
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "", "graph", definitions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "digraph") || !strings.Contains(out, "cluster_") {
		t.Errorf("expected a DOT digraph, got %q", out)
	}
}

type result struct {
	State string          `json:"state"`
	Data  json.RawMessage `json:"data"`
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		pipeline  string
		input     string
		wantState string
		check     func(t *testing.T, data json.RawMessage)
	}{
		{
			name:      "active entity is named and aged",
			pipeline:  "entity-cleanup",
			input:     `{"id":"1","active":"ACTIVE","date_time":"2019-05-01T00:00:00Z"}`,
			wantState: "OK",
			check: func(t *testing.T, data json.RawMessage) {
				var e demo.Entity
				if err := json.Unmarshal(data, &e); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if !strings.HasPrefix(e.Name, "DEMO ") {
					t.Errorf("expected DEMO name, got %q", e.Name)
				}
				if e.Active != demo.Inactive {
					t.Errorf("expected INACTIVE, got %s", e.Active)
				}
			},
		},
		{
			name:      "deleted entity is dropped",
			pipeline:  "entity-cleanup",
			input:     `{"id":"2","active":"DELETED"}`,
			wantState: "NullData",
		},
		{
			name:      "batch keeps non removed entities",
			pipeline:  "entity-batch",
			input:     `[{"id":"1","active":"ACTIVE"},{"id":"2","active":"UNKNOWN"},{"id":"3","active":"INACTIVE"}]`,
			wantState: "OK",
			check: func(t *testing.T, data json.RawMessage) {
				var es []demo.Entity
				if err := json.Unmarshal(data, &es); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(es) != 2 {
					t.Fatalf("expected 2 entities, got %d", len(es))
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tc.input, "run", tc.pipeline, "-f", definitions, "--set", "tenant=acme")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var res result
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode output %q: %v", out, err)
			}
			if res.State != tc.wantState {
				t.Errorf("expected state %s, got %s", tc.wantState, res.State)
			}
			if tc.check != nil {
				tc.check(t, res.Data)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown pipeline", []string{"run", "nope", "-f", definitions}},
		{"bad set value", []string{"run", "entity-cleanup", "-f", definitions, "--set", "novalue"}},
		{"unreadable input", []string{"run", "entity-cleanup", "-f", definitions, "-i", "testdata/missing.json"}},
		{"missing file flag", []string{"run", "entity-cleanup"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := execute(t, `{"id":"1","active":"ACTIVE"}`, tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestContextFrom(t *testing.T) {
	pctx, err := contextFrom([]string{"tenant=acme", "query=a=b"}, "Upsert")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := pctx.Get("tenant"); v != "acme" {
		t.Errorf("expected tenant=acme, got %v", v)
	}
	if v, _ := pctx.Get("query"); v != "a=b" {
		t.Errorf("expected query=a=b, got %v", v)
	}
	if v, _ := pctx.Get(source.OperationKey); v != "Upsert" {
		t.Errorf("expected operation Upsert, got %v", v)
	}
}
