package webserver

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/validai/src/data"
	"github.com/stake-plus/validai/src/types"
)

type History struct {
	store data.Store
}

func NewHistory(store data.Store) History {
	return History{store: store}
}

func (h History) List(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	q, err := parseHistoryQuery(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	items, total, err := h.store.List(c.Request.Context(), q)
	if err != nil {
		log.Printf("webserver: history list: %v", err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "could not list history")
		return
	}
	q = q.Normalize()
	pages := (total + int64(q.PageSize) - 1) / int64(q.PageSize)
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total":       total,
		"page":        q.Page,
		"page_size":   q.PageSize,
		"total_pages": pages,
	})
}

func (h History) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, data.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, codeNotFound, "verification not found")
		return
	}
	if err != nil {
		log.Printf("webserver: history get %s: %v", c.Param("id"), err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "could not load verification")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h History) Delete(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id := c.Param("id")
	err := h.store.Delete(c.Request.Context(), id)
	if errors.Is(err, data.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, codeNotFound, "verification not found")
		return
	}
	if err != nil {
		log.Printf("webserver: history delete %s: %v", id, err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "could not delete verification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "id": id})
}

func (h History) Stats(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		log.Printf("webserver: stats: %v", err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "could not compute statistics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": st})
}

func (h History) enabled(c *gin.Context) bool {
	if h.store == nil {
		abortWithError(c, http.StatusServiceUnavailable, codeStoreDisabled, "verification history is not enabled")
		return false
	}
	return true
}

func parseHistoryQuery(c *gin.Context) (data.HistoryQuery, error) {
	var q data.HistoryQuery
	var err error
	if v := c.Query("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil || q.Page < 1 {
			return q, fmt.Errorf("page must be a positive integer")
		}
	}
	if v := c.Query("page_size"); v != "" {
		if q.PageSize, err = strconv.Atoi(v); err != nil || q.PageSize < 1 {
			return q, fmt.Errorf("page_size must be a positive integer")
		}
	}
	q.Search = strings.TrimSpace(c.Query("search"))
	q.RequestID = strings.TrimSpace(c.Query("request_id"))
	if v := c.Query("classification"); v != "" {
		class := types.Classification(strings.ToUpper(strings.TrimSpace(v)))
		if !class.Valid() {
			return q, fmt.Errorf("unknown classification %q", v)
		}
		q.Classification = string(class)
	}
	if v := c.Query("date_from"); v != "" {
		if q.From, err = parseDate(v, false); err != nil {
			return q, fmt.Errorf("date_from: %w", err)
		}
	}
	if v := c.Query("date_to"); v != "" {
		if q.To, err = parseDate(v, true); err != nil {
			return q, fmt.Errorf("date_to: %w", err)
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, fmt.Errorf("date_to is before date_from")
	}
	return q, nil
}

// parseDate accepts RFC 3339 or a bare date; a bare end date covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
