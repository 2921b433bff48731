// Package webserver exposes verification, history, stats and news over HTTP with gin.
package webserver

import (
	"context"
	"embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/config"
	"github.com/stake-plus/validai/src/data"
	"github.com/stake-plus/validai/src/news"
	"github.com/stake-plus/validai/src/types"
)

//go:embed static/index.html
var staticFS embed.FS

// Verifier runs one verification and always returns an envelope.
type Verifier interface {
	Verify(ctx context.Context, req types.VerificationRequest) *types.VerificationResponse
}

// NewsSource lists recent headlines.
type NewsSource interface {
	Latest(ctx context.Context, limit int) ([]news.Item, error)
}

// Deps are the collaborators behind the routes. History and News may be nil.
type Deps struct {
	Settings config.Settings
	Verifier Verifier
	History  data.Store
	News     NewsSource
}

// Mode picks the gin mode; debug output is never enabled in production.
func Mode(s config.Settings) string {
	if s.Debug && !s.IsProduction() {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func New(deps Deps) *gin.Engine {
	g := gin.New()
	g.Use(requestID(), gin.Logger(), recovery())
	attachRoutes(g, deps)
	return g
}

// NewServer wraps the engine with timeouts that leave room for a scrape plus a reasoning call.
func NewServer(s config.Settings, handler http.Handler) *http.Server {
	write := s.APITimeout + s.ScrapingTimeout + 10*time.Second
	if write < 30*time.Second {
		write = 30 * time.Second
	}
	return &http.Server{
		Addr:         ":" + s.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: write,
		IdleTimeout:  60 * time.Second,
	}
}
