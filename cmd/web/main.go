package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/clock"
	"github.com/likecoin/likecoin-button/internal/config"
	"github.com/likecoin/likecoin-button/internal/format"
	handlersPkg "github.com/likecoin/likecoin-button/internal/handlers"
	"github.com/likecoin/likecoin-button/internal/i18n"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	mw "github.com/likecoin/likecoin-button/internal/middleware"
	"github.com/likecoin/likecoin-button/internal/observability"
	"github.com/likecoin/likecoin-button/internal/registry"
)

const limiterSweep = time.Minute

var (
	templatesDir = "templates"
	publicDir    = "public"
	// devMode reparses templates on every request
	devMode    bool
	tmplCache  *template.Template
	i18nBundle *i18n.Bundle
	// staticAssets backs the asset template func; set by newApp
	staticAssets *mw.Assets
)

// app holds the dependencies shared by the handlers.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     clock.Clock
	client    *likecoin.Client
	registry  *registry.Registry
	sessions  *mw.Sessions
	limiter   *mw.RateLimiter
	metrics   *observability.Metrics
	assets    *mw.Assets
	analytics handlersPkg.Analytics
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "web: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	templatesDir = cfg.Server.TemplatesDir
	publicDir = cfg.Server.PublicDir
	devMode = cfg.Server.Dev
	if !devMode {
		// Parse templates once in production
		tc, err := parseTemplates()
		if err != nil {
			return fmt.Errorf("parse templates: %w", err)
		}
		tmplCache = tc
	}
	i18nBundle, err = i18n.Load(cfg.Locales.Dir, cfg.Locales.Fallback, cfg.Locales.Supported)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	clk := clock.New()
	a, err := newApp(cfg, logger, clk)
	if err != nil {
		return err
	}
	go a.registry.Run(ctx, cfg.Widget.RegistrySweep)
	sweeper := clk.TickFunc(limiterSweep, func() { a.limiter.Sweep() })
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web listening", zap.String("addr", srv.Addr), zap.Bool("dev", devMode), zap.String("env", cfg.Security.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// flush pending likes of every live widget
	a.registry.Close()
	return err
}

func newApp(cfg config.Config, logger *zap.Logger, clk clock.Clock) (*app, error) {
	metrics := observability.NewMetrics()
	sessions, err := mw.NewSessions(mw.SessionConfig{
		HashKey:  []byte(cfg.Security.SessionHashKey),
		BlockKey: []byte(cfg.Security.SessionBlockKey),
		Secure:   cfg.IsProd(),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Security.SessionHashKey == "" {
		logger.Warn("session: using ephemeral signing key; set LIKEBUTTON_SESSION_HASH_KEY for production")
	}
	staticAssets = mw.NewAssets(filepath.Join(publicDir, "assets"), "/assets", devMode)
	return &app{
		cfg:    cfg,
		logger: logger,
		clock:  clk,
		client: likecoin.NewClient(likecoin.Options{
			LikeCoinAPI:  cfg.API.LikeCoinAPI,
			MiscAPI:      cfg.API.MiscAPI,
			LikerLandAPI: cfg.API.LikerLandAPI,
			Timeout:      cfg.API.Timeout,
			Observer:     metrics,
		}),
		registry: registry.New(registry.Options{
			TTL:    cfg.Widget.IdleTTL,
			Clock:  clk,
			Logger: logger,
			Gauge:  metrics.ActiveWidgets,
		}),
		sessions:  sessions,
		limiter:   mw.NewRateLimiter(float64(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst),
		metrics:   metrics,
		assets:    staticAssets,
		analytics: handlersPkg.AnalyticsFromConfig(cfg.Analytics),
	}, nil
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLogger(a.logger))
	r.Use(observability.Trace)
	r.Use(observability.RequestLogger)
	r.Use(observability.Recovery(a.logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(mw.SecureHeaders(strings.Fields(a.cfg.Security.FrameAncestors)))
	r.Use(mw.HTMX)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", a.metrics.Handler())
	r.Handle("/assets/*", a.assets)

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.Middleware)
		r.Use(mw.Locale(i18nBundle))
		r.Use(mw.VaryLocale)

		r.Get("/in/embed/{id}/button", a.ButtonPageHandler)
		r.Get("/in/embed/{id}/button/state", a.StateHandler)
		r.Get("/in/embed/{id}/button/{amount}", a.ButtonPageHandler)
		r.Get("/in/embed/{id}/list", a.ListPageHandler)

		r.Group(func(r chi.Router) {
			r.Use(a.limiter.Middleware)
			r.Use(a.sessions.CSRF)
			r.Get("/in/embed/{id}/button/tz", a.TimezoneHandler)
			r.Post("/in/embed/{id}/button/like", a.LikeHandler)
			r.Post("/in/embed/{id}/button/bookmark", a.BookmarkHandler)
			r.Post("/in/embed/{id}/button/follow", a.FollowHandler)
			r.Post("/in/embed/{id}/button/signup", a.SignUpHandler)
			r.Post("/in/embed/{id}/button/superlike", a.SuperLikeHandler)
			r.Post("/in/embed/{id}/button/stats", a.StatsHandler)
			r.Post("/in/embed/{id}/button/civic", a.CivicLikerHandler)
		})
	})
	return r
}

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"now": time.Now,
		"t": func(lang, key string) string {
			if i18nBundle == nil {
				return key
			}
			return i18nBundle.T(lang, key)
		},
		"count": func(n int) string { return format.Count(int64(n)) },
		"asset": func(name string) string {
			if staticAssets == nil {
				return "/assets/" + name
			}
			return staticAssets.URL(name)
		},
	}
	// Recursively discover and parse all .tmpl files. Note: ParseGlob doesn't support **.
	var files []string
	if err := filepath.WalkDir(templatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", templatesDir)
	}
	return template.New("_root").Funcs(funcMap).ParseFiles(files...)
}

func templates() (*template.Template, error) {
	if devMode {
		return parseTemplates()
	}
	if tmplCache == nil {
		return nil, errors.New("template not initialized")
	}
	return tmplCache, nil
}

// render executes the base layout. In dev mode, templates are reparsed on each request.
func render(w http.ResponseWriter, r *http.Request, status int, data handlersPkg.PageData) {
	renderTemplate(w, r, status, "base", data)
}

// renderTemplate executes a named template, typically an htmx fragment.
func renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, err := templates()
	if err != nil {
		http.Error(w, fmt.Sprintf("template parse error: %v", err), http.StatusInternalServerError)
		return
	}
	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		observability.FromContext(r.Context()).Error("template exec failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}
