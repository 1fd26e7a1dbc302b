package api

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/eugenenazirov/simserver/internal/config"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const serverTimeLayout = "2006-01-02 15:04:05"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<html>
    <head>
        <title>Simple Server v{{.Version}}</title>
    </head>
    <body>
        <h1>{{.WelcomeMessage}}</h1>
        <p>This is a simple HTTP server (v{{.Version}}).</p>
        <p>Server Time: {{.ServerTime}}</p>
    </body>
</html>
`))

// Handler serves the three fixed routes. Every route answers 200: unmatched
// paths fall through to the welcome page rather than a 404. That is the
// served contract, not an omission.
type Handler struct {
	version        string
	welcomeMessage string

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler from the loaded configuration. The config
// values are captured once; the Handler holds no mutable state and is safe
// for concurrent use.
func NewHandler(cfg config.Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		version:        cfg.Version,
		welcomeMessage: cfg.WelcomeMessage,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	resp := testResponse{
		Status:    "success",
		Query:     parseQuery(r.URL.RawQuery),
		Version:   h.version,
		Timestamp: h.clock().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// handleDefault serves the HTML welcome page for every path that matches no
// other route, always with status 200.
func (h *Handler) handleDefault(w http.ResponseWriter, r *http.Request) {
	_ = r
	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, welcomePage{
		Version:        h.version,
		WelcomeMessage: h.welcomeMessage,
		ServerTime:     h.clock().Format(serverTimeLayout),
	})
	if err != nil {
		// The template and its inputs are fixed at startup; this cannot
		// fail for a well-formed config.
		panic(err)
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseQuery decodes a raw query string into key -> ordered values.
// Unparseable fragments are dropped; a request never fails on a bad query.
func parseQuery(rawQuery string) url.Values {
	values, err := url.ParseQuery(rawQuery)
	if err != nil && values == nil {
		return url.Values{}
	}
	return values
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

type testResponse struct {
	Status    string     `json:"status"`
	Query     url.Values `json:"query"`
	Version   string     `json:"version"`
	Timestamp string     `json:"timestamp"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type welcomePage struct {
	Version        string
	WelcomeMessage string
	ServerTime     string
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
