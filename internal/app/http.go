package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"userdir/internal/auth/handler"
	"userdir/internal/auth/provider"
	"userdir/internal/auth/resolver"
	"userdir/internal/config"
	"userdir/internal/handshake"
	"userdir/internal/metrics"
	"userdir/internal/middleware"
	"userdir/internal/session"
	"userdir/internal/store"
	"userdir/internal/users"
	"userdir/internal/web"
)

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Users      store.Store
	Handshakes handshake.Store
	Providers  *provider.Registry
	Sessions   *session.Manager
	Metrics    *metrics.Metrics
	Cookies    session.CookieOptions
}

func NewRouter(d RouterDeps) *gin.Engine {
	authMiddleware := middleware.NewAuth(d.Sessions)

	authHandler := handler.NewHandler(handler.Deps{
		Providers:  d.Providers,
		Resolver:   resolver.NewStoreResolver(d.Users),
		Sessions:   d.Sessions,
		Auth:       authMiddleware,
		Handshakes: d.Handshakes,
		Metrics:    d.Metrics,
		Cookies:    d.Cookies,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Metrics))
	router.SetHTMLTemplate(web.Templates())

	// ----------------------------
	// Auth
	// ----------------------------

	authHandler.RegisterRoutes(router)

	// ----------------------------
	// Protected API
	// ----------------------------

	users.NewHandler(d.Users).RegisterRoutes(router, authMiddleware)

	// ----------------------------
	// Pages
	// ----------------------------

	web.NewPages(d.Users).Register(router, authMiddleware)

	// ----------------------------
	// Ops
	// ----------------------------

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	return router
}

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	sessions, err := session.NewManager(cfg.AuthSecret, session.WithTTL(cfg.SessionTTL))
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	router := NewRouter(RouterDeps{
		Users:      infra.Users,
		Handshakes: infra.Handshakes,
		Providers:  registry,
		Sessions:   sessions,
		Metrics:    metrics.New(),
		Cookies:    session.CookieOptions{Secure: cfg.CookieSecure},
	})

	return router, infra.Close, nil
}
