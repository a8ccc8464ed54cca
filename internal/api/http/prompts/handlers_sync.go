package prompts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

func (h *Handler) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "preferences": h.cache.Preferences()})
}

type preferencesReq struct {
	View  string           `json:"view"`
	Sort  domain.SortField `json:"sort"`
	Order domain.SortOrder `json:"order"`
}

func (h *Handler) putPreferences(c *gin.Context) {
	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	ctx := c.Request.Context()
	if req.View != "" {
		if err := h.cache.SetView(ctx, req.View); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.Sort != "" || req.Order != "" {
		prefs := h.cache.Preferences()
		if req.Sort == "" {
			req.Sort = prefs.Sort
		}
		if req.Order == "" {
			req.Order = prefs.Order
		}
		if err := h.cache.SetSort(ctx, req.Sort, req.Order); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "preferences": h.cache.Preferences()})
}

func (h *Handler) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "state": h.cache.State(), "pending": h.cache.PendingCount()})
}

// retrySync re-queues pending entities. With ?wait=true it returns after the
// queue drains.
func (h *Handler) retrySync(c *gin.Context) {
	ctx := c.Request.Context()
	queued := h.cache.RetryPending(ctx)
	if c.Query("wait") == "true" {
		if err := h.cache.Flush(ctx); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"queued":  queued,
		"state":   h.cache.State(),
		"pending": h.cache.PendingCount(),
	})
}

// stream serves notifications as server-sent events until the client leaves.
func (h *Handler) stream(c *gin.Context) {
	ctx := c.Request.Context()

	var events <-chan library.Notification
	if h.events != nil {
		ch, err := h.events.Subscribe(ctx)
		if err != nil {
			h.fail(c, err)
			return
		}
		events = ch
	} else {
		ch := make(chan library.Notification, 16)
		unsubscribe := h.cache.Subscribe(func(n library.Notification) {
			select {
			case ch <- n:
			default:
			}
		})
		defer unsubscribe()
		events = ch
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	initial, _ := json.Marshal(gin.H{"state": h.cache.State(), "pending": h.cache.PendingCount()})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", initial)
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", n.Level, data)
			flusher.Flush()
		}
	}
}
