package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/andrey-viktorov/sse-test-server/pkg/config"
	"github.com/andrey-viktorov/sse-test-server/pkg/requestlog"
	"github.com/andrey-viktorov/sse-test-server/pkg/sse"
	"github.com/andrey-viktorov/sse-test-server/pkg/stream"
	"github.com/valyala/fasthttp"
)

// Pre-computed constants to avoid allocations
var (
	methodGET  = []byte("GET")
	pathData   = []byte("/api/data")
	pathEvents = []byte("/api/events")
	pathHealth = []byte("/health")

	argCloseAfter = []byte("closeAfter")

	bodyHealth   = []byte("Server is running")
	bodyNotFound = []byte("Not Found")
)

const (
	contentTypeJSON   = "application/json"
	contentTypeText   = "text/plain"
	contentTypeStream = "text/event-stream"

	dataMessage = "This is a regular HTTP response"
)

type dataResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the diagnostic endpoints and owns the live SSE sessions.
type Handler struct {
	closeAfter   int
	tickInterval time.Duration

	logger   *slog.Logger
	notFound *requestlog.NotFoundLogger
	sessions *stream.Registry
	observe  func(*stream.Session)

	stop     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Handler.
type Option func(h *Handler)

// WithLogger sets the logger used for request and session events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithNotFoundLogger records every unmatched request with l.
func WithNotFoundLogger(l *requestlog.NotFoundLogger) Option {
	return func(h *Handler) {
		h.notFound = l
	}
}

// WithSessionObserver calls fn with each session before it starts streaming.
func WithSessionObserver(fn func(*stream.Session)) Option {
	return func(h *Handler) {
		h.observe = fn
	}
}

// New creates a Handler using the event settings from cfg.
func New(cfg *config.Config, opts ...Option) *Handler {
	h := &Handler{
		closeAfter:   cfg.Events.DefaultCloseAfterMs,
		tickInterval: cfg.Events.TickInterval,
		logger:       slog.Default(),
		sessions:     stream.NewRegistry(),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Sessions returns the registry of live SSE sessions.
func (h *Handler) Sessions() *stream.Registry {
	return h.sessions
}

// Close ends every live session without a closing frame. Safe to call more than once.
func (h *Handler) Close() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// DataHandler answers with a fixed JSON document and the current time.
func DataHandler(ctx *fasthttp.RequestCtx) {
	body, err := json.Marshal(dataResponse{
		Message:   dataMessage,
		Timestamp: sse.Timestamp(time.Now()),
	})
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeJSON)
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.SetBody(body)
}

// HealthHandler reports that the server is up.
func HealthHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeText)
	ctx.SetBody(bodyHealth)
}

// NotFoundHandler answers any request no route claimed.
func NotFoundHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetContentType(contentTypeText)
	ctx.SetBody(bodyNotFound)
}

// EventsHandler opens an SSE stream that emits one update per tick and is
// closed by the server after the closeAfter query parameter (milliseconds).
func (h *Handler) EventsHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeStream)
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")

	closeAfter := stream.ParseCloseAfter(string(ctx.QueryArgs().PeekBytes(argCloseAfter)), h.closeAfter)
	remoteAddr := ctx.RemoteAddr().String()

	session := stream.NewSession(closeAfter, stream.Options{
		TickInterval: h.tickInterval,
		RemoteAddr:   remoteAddr,
		Stop:         h.stop,
		Logger:       h.logger,
	})
	h.logger.Info("SSE client connected",
		"client", remoteAddr,
		"session", session.ID,
		"close_after_ms", closeAfter,
	)

	if h.observe != nil {
		h.observe(session)
	}

	// ctx must not be touched inside the stream writer; it may be recycled.
	ctx.Response.SetBodyStreamWriter(func(w *bufio.Writer) {
		active := h.sessions.Add(session)
		h.logger.Debug("session streaming", "session", session.ID, "active_sessions", active)

		session.Run(w)

		remaining := h.sessions.Remove(session)
		h.logger.Debug("session finished", "session", session.ID, "active_sessions", remaining)
	})
}

func (h *Handler) handleNotFound(ctx *fasthttp.RequestCtx) {
	NotFoundHandler(ctx)

	if h.notFound == nil {
		return
	}
	// Recording failures never change the response.
	if _, err := h.notFound.LogNotFound(ctx); err != nil {
		h.logger.Warn("failed to record unmatched request", "error", err)
	}
}

// Router routes requests to the appropriate handlers.
func (h *Handler) Router() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		pathBytes := ctx.Path()
		methodBytes := ctx.Method()

		h.logger.Info("request received", "method", string(methodBytes), "path", string(pathBytes))

		if !bytes.Equal(methodBytes, methodGET) {
			h.handleNotFound(ctx)
			return
		}

		switch {
		case bytes.Equal(pathBytes, pathData):
			DataHandler(ctx)
		case bytes.Equal(pathBytes, pathEvents):
			h.EventsHandler(ctx)
		case bytes.Equal(pathBytes, pathHealth):
			HealthHandler(ctx)
		default:
			h.handleNotFound(ctx)
		}
	}
}
