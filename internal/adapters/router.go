package adapters

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/app"
	"github.com/dkeye/Talk/internal/config"
)

// ClientTokenMiddleware gives every browser a stable token cookie. It is not
// the connection identity (each socket gets its own ConnID) but lets the UI
// and logs correlate sockets from the same client.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires HTTP routes (static UI, REST, WS, metrics).
func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator, registry *app.Registry, presence *app.Presence, promReg *prometheus.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TalkSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	// GET /api/users — currently registered users
	api.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": registry.ListNames()})
	})

	// GET /api/users/:name/status — presence of one user
	api.GET("/users/:name/status", func(c *gin.Context) {
		name := c.Param("name")
		c.JSON(http.StatusOK, gin.H{
			"user":   name,
			"status": presence.Status(name),
		})
	})

	// DELETE /api/users/:name — administrative kill of a session
	api.DELETE("/users/:name", func(c *gin.Context) {
		sess := registry.GetByName(c.Param("name"))
		if sess == nil {
			c.Status(http.StatusNotFound)
			return
		}
		// Closing the socket makes the read pump run the regular disconnect
		// cleanup; running it here too would clean up the same session twice.
		sess.Close()
		c.Status(http.StatusNoContent)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	ctrl := &SignalWSController{Coordinator: coord, Cfg: cfg}
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
