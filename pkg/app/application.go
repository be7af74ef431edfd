package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/osvaldoandrade/skinup/internal/mineskin"
	"github.com/osvaldoandrade/skinup/internal/providers"
	"github.com/osvaldoandrade/skinup/internal/services"
	"github.com/osvaldoandrade/skinup/internal/tracing"
	"github.com/osvaldoandrade/skinup/internal/tracker"
	"github.com/osvaldoandrade/skinup/pkg/config"
	"github.com/osvaldoandrade/skinup/pkg/domain"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config    *config.Config
	Engine    *gin.Engine
	Logger    *slog.Logger
	Client    *mineskin.Client
	Tracker   *tracker.Tracker
	Status    services.StatusService
	Artifacts providers.ArtifactStore

	TracingShutdown func(context.Context) error

	notifiers  tracker.Notifiers
	httpClient *http.Client
	logOutput  io.Writer
	server     *http.Server
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithNotifier adds a progress notifier, typically the console UI.
func WithNotifier(n tracker.Notifier) ApplicationOption {
	return func(app *Application) error {
		app.notifiers = append(app.notifiers, n)
		return nil
	}
}

// WithHTTPClient replaces the transport HTTP client.
func WithHTTPClient(c *http.Client) ApplicationOption {
	return func(app *Application) error {
		if c == nil {
			return errors.New("nil http client")
		}
		app.httpClient = c
		return nil
	}
}

// WithLogOutput redirects structured logs (stderr by default).
func WithLogOutput(w io.Writer) ApplicationOption {
	return func(app *Application) error {
		app.logOutput = w
		return nil
	}
}

func NewApplication(ctx context.Context, cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	app := &Application{Config: cfg, logOutput: os.Stderr}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelWarn)
	}
	var handler slog.Handler = slog.NewTextHandler(app.logOutput, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "skinup")
	slog.SetDefault(logger)
	app.Logger = logger

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	if app.httpClient == nil {
		app.httpClient = &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}
	}
	app.Client = mineskin.NewClient(mineskin.Options{
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		Visibility: cfg.Visibility,
		Variant:    cfg.Variant,
		Name:       cfg.Name,
		HTTPClient: app.httpClient,
		Logger:     logger,
	})

	app.Status = services.NewStatusService()
	app.Tracker = tracker.New(app.Client, tracker.Options{
		Interval:    time.Duration(cfg.PollIntervalMillis) * time.Millisecond,
		MaxAttempts: cfg.MaxPollAttempts,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		Notifier:    append(tracker.Notifiers{app.Status}, app.notifiers...),
		Logger:      logger,
	})
	app.Artifacts = providers.NewLocalArtifactStore(cfg.OutputDir)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	app.Engine = engine

	return app, nil
}

// SaveArtifact writes a resolved artifact, tagged with the current run, and
// returns its file:// URL.
func (app *Application) SaveArtifact(ctx context.Context, objectPath string, source string, a domain.Artifact) (string, error) {
	rec := providers.ArtifactRecord{
		Texture:   a.Texture,
		Signature: a.Signature,
		Source:    filepath.Base(source),
		CreatedAt: time.Now().UTC(),
	}
	if st, ok := app.Status.Snapshot(); ok {
		rec.RunID = st.RunID
		rec.JobID = st.JobID
	}
	if strings.TrimSpace(objectPath) == "" {
		objectPath = strings.TrimSuffix(rec.Source, filepath.Ext(rec.Source)) + ".json"
	}
	return app.Artifacts.Save(ctx, objectPath, rec)
}

// StartStatusServer serves the status endpoints on cfg.StatusAddr. It is a
// no-op when no address is configured. The bound address is returned.
func (app *Application) StartStatusServer() (string, error) {
	addr := strings.TrimSpace(app.Config.StatusAddr)
	if addr == "" {
		return "", nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	app.server = &http.Server{
		Handler:           app.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("status server", "err", err)
		}
	}()
	app.Logger.Info("status server listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Close stops the status server and flushes traces.
func (app *Application) Close(ctx context.Context) error {
	var errs []error
	if app.server != nil {
		errs = append(errs, app.server.Shutdown(ctx))
	}
	if app.TracingShutdown != nil {
		errs = append(errs, app.TracingShutdown(ctx))
	}
	return errors.Join(errs...)
}
