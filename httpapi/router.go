package httpapi

import (
	"github.com/gin-gonic/gin"

	"clicast/audit"
	"clicast/config"
	"clicast/hub"
	"clicast/middleware"
	"clicast/ratelimit"
	"clicast/session"
	"clicast/token"
)

// Deps bundles every collaborator the router needs to wire up handlers,
// mirroring the teacher main.go's flat "construct service, construct
// handler, register route" sequence but grouped for a single call site.
type Deps struct {
	Config   *config.Config
	Watcher  *config.Watcher
	Registry *session.Registry
	Source   ConfigSource
	Tokens   *token.Store
	Lockout  ratelimit.Lockout
	Audit    *audit.Store
	Hub      *hub.Hub
}

// NewRouter builds the gin.Engine for spec.md §4.6/§6's full HTTP and
// WebSocket surface.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())

	authHandler := NewAuthHandler(d.Tokens, d.Lockout, d.Audit)
	sessionsHandler := NewSessionsHandler(d.Registry, d.Source, d.Audit)
	configHandler := NewConfigHandler(d.Config, d.Watcher)
	dirsHandler := NewDirsHandler(d.Source)
	auditHandler := NewAuditHandler(d.Audit)

	r.GET("/api/health", Health)
	r.GET("/api/auth/status", authHandler.Status)
	r.POST("/api/auth/init", authHandler.Init)
	r.POST("/api/auth/verify", authHandler.Verify)
	r.PUT("/api/auth", authHandler.Rotate)

	protected := r.Group("/api")
	protected.Use(middleware.RequireToken(d.Tokens))
	{
		protected.DELETE("/auth", authHandler.Clear)

		protected.GET("/config", configHandler.Get)
		protected.PUT("/config", configHandler.Update)

		protected.GET("/dirs", dirsHandler.List)
		protected.GET("/dirs/breadcrumbs", dirsHandler.Breadcrumbs)

		protected.GET("/sessions", sessionsHandler.List)
		protected.POST("/sessions", sessionsHandler.Create)
		protected.GET("/sessions/:id", sessionsHandler.Get)
		protected.DELETE("/sessions/:id", sessionsHandler.Delete)
		protected.POST("/sessions/:id/stop", sessionsHandler.Stop)

		protected.GET("/audit", auditHandler.List)
	}

	r.GET("/ws", d.Hub.ServeSession)
	r.GET("/ws/dev", d.Hub.ServeDev)

	return r
}
