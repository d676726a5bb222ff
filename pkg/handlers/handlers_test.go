package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrey-viktorov/sse-test-server/pkg/config"
	"github.com/andrey-viktorov/sse-test-server/pkg/requestlog"
	"github.com/valyala/fasthttp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(opts ...Option) *Handler {
	return New(config.Default(), append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func newRequestCtx(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.SetMethod(method)
	return ctx
}

func BenchmarkRouterData(b *testing.B) {
	handler := newTestHandler().Router()
	ctx := newRequestCtx("GET", "/api/data")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		handler(ctx)
		ctx.Response.Reset()
	}
}

func BenchmarkRouterHealth(b *testing.B) {
	handler := newTestHandler().Router()
	ctx := newRequestCtx("GET", "/health")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		handler(ctx)
		ctx.Response.Reset()
	}
}

func TestDataHandler(t *testing.T) {
	handler := newTestHandler().Router()
	ctx := newRequestCtx("GET", "/api/data")

	sent := time.Now().Truncate(time.Millisecond)
	handler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("Expected 200, got %d", ctx.Response.StatusCode())
	}
	if ct := string(ctx.Response.Header.ContentType()); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
	if cors := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")); cors != "*" {
		t.Errorf("Expected CORS allow-all, got %q", cors)
	}

	var body struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if body.Message != "This is a regular HTTP response" {
		t.Errorf("Unexpected message: %q", body.Message)
	}
	ts, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	if err != nil {
		t.Fatalf("Timestamp is not ISO-8601: %v", err)
	}
	if ts.Before(sent) {
		t.Errorf("Timestamp %v is before request time %v", ts, sent)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := newTestHandler().Router()
	ctx := newRequestCtx("GET", "/health")

	handler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("Expected 200, got %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "Server is running" {
		t.Errorf("Unexpected body: %q", ctx.Response.Body())
	}
	if ct := string(ctx.Response.Header.ContentType()); ct != "text/plain" {
		t.Errorf("Expected text/plain, got %s", ct)
	}
}

func TestRouterNotFound(t *testing.T) {
	handler := newTestHandler().Router()

	requests := []struct {
		method string
		uri    string
	}{
		{"POST", "/api/data"},
		{"GET", "/unknown"},
		{"PUT", "/health"},
		{"DELETE", "/api/events"},
		{"GET", "/api/events/extra"},
		{"GET", "/"},
	}

	for _, r := range requests {
		t.Run(r.method+" "+r.uri, func(t *testing.T) {
			ctx := newRequestCtx(r.method, r.uri)
			handler(ctx)

			if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
				t.Fatalf("Expected 404, got %d", ctx.Response.StatusCode())
			}
			if string(ctx.Response.Body()) != "Not Found" {
				t.Errorf("Unexpected body: %q", ctx.Response.Body())
			}
			if ct := string(ctx.Response.Header.ContentType()); ct != "text/plain" {
				t.Errorf("Expected text/plain, got %s", ct)
			}
		})
	}
}

func TestRouterRecordsNotFound(t *testing.T) {
	dir := t.TempDir()
	recorder, err := requestlog.NewNotFoundLogger(dir)
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	handler := newTestHandler(WithNotFoundLogger(recorder)).Router()

	ctx := newRequestCtx("POST", "/api/data")
	ctx.Request.SetBody([]byte(`{"probe":true}`))
	handler(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("Expected 404, got %d", ctx.Response.StatusCode())
	}

	// matched routes are never recorded
	handler(newRequestCtx("GET", "/health"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 recorded request, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".json" {
		t.Errorf("Unexpected record file: %s", entries[0].Name())
	}
}

func TestEventsHandlerHeaders(t *testing.T) {
	h := newTestHandler()
	defer h.Close()

	ctx := newRequestCtx("GET", "/api/events?closeAfter=2500")
	h.Router()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("Expected 200, got %d", ctx.Response.StatusCode())
	}
	if !ctx.Response.IsBodyStream() {
		t.Fatal("Expected a streamed body")
	}

	expectHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}
	for key, want := range expectHeaders {
		if got := string(ctx.Response.Header.Peek(key)); got != want {
			t.Errorf("Header %s = %q, want %q", key, got, want)
		}
	}
}

func TestHandlerCloseIsIdempotent(t *testing.T) {
	h := newTestHandler()
	h.Close()
	h.Close()

	select {
	case <-h.stop:
	default:
		t.Error("Expected stop channel to be closed")
	}
}
