package webserver

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/news"
)

const (
	defaultNewsLimit = 10
	maxNewsLimit     = 50
)

type News struct {
	source NewsSource
}

func NewNews(source NewsSource) News {
	return News{source: source}
}

func (h News) List(c *gin.Context) {
	limit := defaultNewsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abortWithError(c, http.StatusBadRequest, codeInvalidQuery, "limit must be a positive integer")
			return
		}
		limit = min(n, maxNewsLimit)
	}
	if h.source == nil {
		c.JSON(http.StatusOK, gin.H{"items": []news.Item{}})
		return
	}
	items, err := h.source.Latest(c.Request.Context(), limit)
	if err != nil {
		log.Printf("webserver: news: %v", err)
		abortWithError(c, http.StatusBadGateway, codeNewsUnavailable, "news feeds are unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func index(c *gin.Context) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, codeInternal, "page unavailable")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
