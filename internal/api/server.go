package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/keylight/internal/api/models"
	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/keys"
	"github.com/smazurov/keylight/internal/logging"
	"github.com/smazurov/keylight/internal/midi"
	"github.com/smazurov/keylight/internal/render"
	"github.com/smazurov/keylight/internal/version"
	"github.com/smazurov/keylight/ui"
)

const authRealm = `Basic realm="keylight"`

// SettingsService is the live effect settings and their preset storage.
type SettingsService interface {
	Get() effects.Settings
	Set(p effects.Patch) (effects.Settings, error)
	Save(name string) (effects.Settings, error)
	Load(name string) (effects.Settings, error)
	Delete(name string) error
	Presets() ([]string, error)
}

// RendererService controls the render engine.
type RendererService interface {
	Start()
	Stop()
	State() render.State
	Layout() keys.Layout
	ToggleStatusIndicators() bool
	StartTestPattern(ctx context.Context) error
	CancelTestPattern() bool
}

// KeyReader exposes the key state.
type KeyReader interface {
	Snapshot() keys.Snapshot
}

// HardwareStatus reports on the LED output.
type HardwareStatus interface {
	Name() string
	Healthy() bool
	LastError() string
}

// MIDIInputs lists MIDI devices.
type MIDIInputs interface {
	Inputs() ([]midi.Input, error)
	Connected() string
}

// Options wires the server to the rest of the daemon.
type Options struct {
	AuthUsername string
	AuthPassword string

	Settings SettingsService
	Renderer RendererService
	Keys     KeyReader
	Output   HardwareStatus
	MIDI     MIDIInputs // optional
	EventBus *events.Bus

	PrometheusHandler http.Handler // optional
	PreviewHandler    http.Handler // optional, WebSocket frame preview
}

// Server is the huma control API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("keylight API", version.Get().Version)
	config.Info.Description = "Runtime control of the piano LED renderer"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	s := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.PreviewHandler != nil {
		mux.Handle("GET /api/preview/ws", s.requireAuth(opts.PreviewHandler))
	}

	s.registerRoutes()

	// The preview page is only useful with the preview socket.
	if opts.PreviewHandler != nil {
		if page, err := ui.Handler(); err == nil {
			mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/api") {
					http.NotFound(w, r)
					return
				}
				page.ServeHTTP(w, r)
			})
		}
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and every open connection, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				GoVersion: v.GoVersion,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerLEDRoutes()
	s.registerSettingsRoutes()
	s.registerPresetRoutes()
	s.registerMIDIRoutes()
	s.registerSSERoutes()
}

// basicAuthMiddleware checks HTTP basic credentials on operations that declare
// security. SSE clients that cannot set headers may pass base64 credentials in
// the auth query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}
		if msg := checkCredentials(ctx.Header("Authorization"), ctx.Query("auth"), username, password); msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			return
		}
		next(ctx)
	}
}

// requireAuth applies the same credential check to plain handlers.
func (s *Server) requireAuth(h http.Handler) http.Handler {
	user, pass := s.options.AuthUsername, s.options.AuthPassword
	if user == "" || pass == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if msg := checkCredentials(r.Header.Get("Authorization"), r.URL.Query().Get("auth"), user, pass); msg != "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// checkCredentials returns "" when the credentials match, else the reason.
func checkCredentials(header, query, username, password string) string {
	var encoded string
	switch {
	case header != "":
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	case query != "":
		encoded = query
	default:
		return "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "Invalid credentials format"
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "Invalid credentials format"
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	if !userOK || !passOK {
		return "Invalid credentials"
	}
	return ""
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
