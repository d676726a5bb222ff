package requestlog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsonfilter "github.com/andrey-viktorov/jsonfilter-go"
	"github.com/andrey-viktorov/jsonfilter-go/serde"
	"github.com/valyala/fasthttp"
)

// bodyMatcher decides whether a request body should be recorded.
type bodyMatcher interface {
	Match(body []byte) bool
}

type jsonFilterMatcher struct {
	operator jsonfilter.Operator
}

func (m jsonFilterMatcher) Match(body []byte) bool {
	return m.operator.Evaluate(body).Match
}

// NotFoundLogger writes unmatched request/response pairs to JSON files.
type NotFoundLogger struct {
	baseDir string
	filter  bodyMatcher
}

// NewNotFoundLogger creates a new logger that writes to the specified directory.
func NewNotFoundLogger(baseDir string) (*NotFoundLogger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	return &NotFoundLogger{
		baseDir: baseDir,
	}, nil
}

// SetBodyFilter restricts recording to requests whose body matches the given
// jsonfilter document. An empty document removes the filter.
func (l *NotFoundLogger) SetBodyFilter(def map[string]interface{}) error {
	if len(def) == 0 {
		l.filter = nil
		return nil
	}

	root := map[string]interface{}{"jsonFilter": def}
	operator, err := serde.DefaultParser().FromMap(root)
	if err != nil {
		return fmt.Errorf("body filter: %w", err)
	}

	validation := operator.Validate()
	if !validation.Valid {
		return fmt.Errorf("body filter invalid: %s", validation.CauseDescription)
	}

	l.filter = jsonFilterMatcher{operator: operator}
	return nil
}

// Dir returns the directory records are written to.
func (l *NotFoundLogger) Dir() string {
	return l.baseDir
}

// generateRandomHex generates random hex string for filename uniqueness
func generateRandomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// sanitizeContentType converts content-type to safe filename component
func sanitizeContentType(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)

	contentType = strings.ReplaceAll(contentType, "/", "_")
	contentType = strings.ReplaceAll(contentType, "+", "_")
	contentType = strings.ReplaceAll(contentType, ".", "_")

	if contentType == "" {
		contentType = "unknown"
	}

	return contentType
}

// acceptedType returns the first media type of an Accept header value.
func acceptedType(accept string) string {
	if accept == "" || accept == "*/*" {
		return "any"
	}
	if idx := strings.IndexByte(accept, ','); idx >= 0 {
		accept = accept[:idx]
	}
	if idx := strings.IndexByte(accept, ';'); idx >= 0 {
		accept = accept[:idx]
	}
	return strings.TrimSpace(accept)
}

// bodyValue keeps JSON bodies structured and everything else as text.
func bodyValue(raw []byte) interface{} {
	if len(raw) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func headerMap(visit func(func(key, value []byte))) map[string]string {
	headers := make(map[string]string)
	visit(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	return headers
}

// LogNotFound records the request in ctx together with the response already
// written to it. It reports false when the body filter rejected the request.
func (l *NotFoundLogger) LogNotFound(ctx *fasthttp.RequestCtx) (bool, error) {
	body := ctx.PostBody()
	if l.filter != nil && !l.filter.Match(body) {
		return false, nil
	}

	requestID := time.Now().Format("20060102150405.999999999")
	received := ctx.Time().UTC().Format(time.RFC3339Nano)

	record := map[string]interface{}{
		"request": map[string]interface{}{
			"request_id":  requestID,
			"timestamp":   received,
			"remote_addr": ctx.RemoteAddr().String(),
			"method":      string(ctx.Method()),
			"url":         string(ctx.RequestURI()),
			"headers":     headerMap(ctx.Request.Header.VisitAll),
			"body":        bodyValue(body),
		},
		"response": map[string]interface{}{
			"request_id":  requestID,
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"status_code": ctx.Response.StatusCode(),
			"headers":     headerMap(ctx.Response.Header.VisitAll),
			"body":        bodyValue(ctx.Response.Body()),
		},
	}

	// Filename: <accepted-type>_<timestamp>_<random>.json
	ts := time.Now().Format("20060102_150405")
	safeType := sanitizeContentType(acceptedType(string(ctx.Request.Header.Peek("Accept"))))
	filename := fmt.Sprintf("%s_%s_%s.json", safeType, ts, generateRandomHex(4))

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return false, err
	}

	if err := os.WriteFile(filepath.Join(l.baseDir, filename), data, 0644); err != nil {
		return false, err
	}
	return true, nil
}
