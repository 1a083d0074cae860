package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pennywise/internal/backend"
	"pennywise/internal/core"
	"pennywise/internal/log"
	"pennywise/internal/middleware/ratelimit"
	"pennywise/internal/middleware/security"
	"pennywise/internal/middleware/trace"
	"pennywise/internal/services"
	appweb "pennywise/web"
)

// Options configures NewServer.
type Options struct {
	Addr               string
	Client             *backend.Client
	Logger             *log.Logger
	SecureCookies      bool
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	// SiteURL is the externally visible origin used in emailed links.
	SiteURL string
}

type Server struct {
	http.Server
	templates *template.Template
	client    *backend.Client
	manager   *services.Manager
	invoices  *services.InvoiceService
	logger    *log.Logger

	siteURL       string
	secureCookies bool
	refreshTTL    time.Duration

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime     time.Time
	mutations  atomic.Int64
	signIns    atomic.Int64
	authErrors atomic.Int64
	streams    atomic.Int64
}

// NewServer configures routes, middleware and templates.
func NewServer(opts Options) (*Server, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("http: data client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = 30 * 24 * time.Hour
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		templates:     t,
		client:        opts.Client,
		manager:       services.NewManager(opts.Client, logger),
		invoices:      services.NewInvoiceService(opts.Client, logger),
		logger:        logger.WithComponent(log.ComponentHTTP),
		siteURL:       opts.SiteURL,
		secureCookies: opts.SecureCookies,
		refreshTTL:    opts.RefreshTokenTTL,
		appMetrics:    &appMetrics{uptime: time.Now()},
	}

	s.securityDetector = security.NewDetector(logger)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)
	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	s.rateLimiter = ratelimit.NewLimiter(rlConfig)

	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down").Write(w)
	}

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, onLimit)(handler)
	handler = headers.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = log.Middleware(logger, trace.GetRequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"money":      core.FormatMoney,
		"fixed":      core.FormatAmount,
		"date":       func(t time.Time) string { return t.Format("2006-01-02") },
		"invoiceURL": invoiceURL,
	}
	t, err := template.New("pennywise").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Auth
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleSignIn)
	mux.HandleFunc("GET /signup", s.handleSignUpPage)
	mux.HandleFunc("POST /signup", s.handleSignUp)
	mux.HandleFunc("POST /logout", s.handleSignOut)
	mux.HandleFunc("GET /auth/oauth/{provider}", s.handleOAuthStart)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /auth/reset", s.handleResetRequest)
	mux.HandleFunc("GET /reset-password", s.requireUser(s.handleResetPasswordPage))
	mux.HandleFunc("POST /reset-password", s.requireUser(s.handleResetPassword))
	mux.HandleFunc("GET /auth/events", s.requireUser(s.handleAuthEvents))

	// Manager
	mux.HandleFunc("GET /{$}", s.requireUser(s.handleDashboard))
	mux.HandleFunc("GET /dashboard", s.requireUser(s.handleDashboard))
	mux.HandleFunc("GET /ui/manager", s.requireUser(s.handleManagerPartial))
	mux.HandleFunc("POST /expenses", s.requireUser(s.handleCreateExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.requireUser(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.requireUser(s.handleDeleteExpense))
	mux.HandleFunc("POST /categories", s.requireUser(s.handleCreateCategory))
	mux.HandleFunc("PUT /categories/{id}", s.requireUser(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.requireUser(s.handleDeleteCategory))
	mux.HandleFunc("POST /preferences/currency", s.requireUser(s.handleChangeCurrency))

	// Invoice
	mux.HandleFunc("GET /invoice", s.requireUser(s.handleInvoice))
	mux.HandleFunc("GET /invoice/pdf", s.requireUser(s.handleInvoicePDF))
}

// Shutdown stops background middleware work and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a named template, logging failures.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
	}
}
