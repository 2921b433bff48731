package webserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/config"
)

type Health struct {
	settings config.Settings
}

func NewHealth(s config.Settings) Health {
	return Health{settings: s}
}

// Get reports healthy whenever the process serves; missing credentials only show in api_keys_configured.
func (h Health) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"service":             config.ServiceName,
		"version":             config.ServiceVersion,
		"timestamp":           time.Now().UTC().Format(time.RFC3339Nano),
		"api_keys_configured": h.settings.ReasoningConfigured(),
		"scraper":             scraperMode(h.settings),
		"provider":            h.settings.AIProvider,
	})
}

func scraperMode(s config.Settings) string {
	if s.ScrapingConfigured() {
		return "firecrawl"
	}
	return "direct"
}
