package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func attachRoutes(r *gin.Engine, deps Deps) {
	r.Use(cors.New(corsConfig(deps.Settings.CORSOrigins)))

	verifyH := NewVerify(deps.Verifier)
	healthH := NewHealth(deps.Settings)
	historyH := NewHistory(deps.History)
	newsH := NewNews(deps.News)

	r.GET("/", index)
	r.GET("/health", healthH.Get)

	api := r.Group("/api")
	{
		api.GET("/health", healthH.Get)
	}

	v1 := api.Group("/v1")
	{
		v1.POST("/verify", verifyH.Create)
		v1.GET("/stats", historyH.Stats)
		v1.GET("/history", historyH.List)
		v1.GET("/history/:id", historyH.Get)
		v1.DELETE("/history/:id", historyH.Delete)
		v1.GET("/news", newsH.List)
	}

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, codeNotFound, "route not found: "+c.Request.Method+" "+c.Request.URL.Path)
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
