package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/entitypipe/httpapi/middleware"
	"github.com/kbukum/entitypipe/logger"
)

func TestRecovery_Panic(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(middleware.HeaderRequestID)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if seen == "" {
			t.Fatal("expected the handler to see a request id")
		}
		if rr.Header().Get(middleware.HeaderRequestID) != seen {
			t.Errorf("expected response header %q, got %q", seen, rr.Header().Get(middleware.HeaderRequestID))
		}
	})

	t.Run("preserves", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(middleware.HeaderRequestID, "given")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if seen != "given" || rr.Header().Get(middleware.HeaderRequestID) != "given" {
			t.Errorf("expected the client id to be kept, got %q", seen)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf strings.Builder
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	handler := middleware.RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pipelines", http.NoBody))
	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected a warn line with the status, got %s", out)
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Errorf("expected /health not to be logged, got %s", buf.String())
	}
}

func TestBodySizeLimit(t *testing.T) {
	var readErr error
	handler := middleware.BodySizeLimit(4)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	if readErr == nil {
		t.Fatal("expected the body read to fail")
	}

	readErr = nil
	middleware.BodySizeLimit(0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	if readErr != nil {
		t.Fatalf("expected no limit, got %v", readErr)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := middleware.Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if strings.Join(order, ",") != "a,b,handler" {
		t.Errorf("unexpected order %v", order)
	}
}
