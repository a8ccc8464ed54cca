package prompts

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

func (h *Handler) listPrompts(c *gin.Context) {
	f := domain.Filter{
		Status: domain.StatusFilter(c.Query("status")),
		Folder: c.Query("folder"),
		Search: c.Query("search"),
		Sort:   domain.SortField(c.Query("sort")),
		Order:  domain.SortOrder(c.Query("order")),
	}
	// Unset sort fields fall back to the saved preference.
	prefs := h.cache.Preferences()
	if f.Sort == "" {
		f.Sort = prefs.Sort
	}
	if f.Order == "" {
		f.Order = prefs.Order
	}

	items, err := h.cache.ListPrompts(f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompts": items, "count": len(items)})
}

func (h *Handler) createPrompt(c *gin.Context) {
	var in domain.PromptInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c)
		return
	}
	p, err := h.cache.CreatePrompt(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "prompt": p, "pending": h.cache.IsPending(p.ID)})
}

func (h *Handler) getPrompt(c *gin.Context) {
	id := c.Param("id")
	p, ok := h.cache.GetPrompt(id)
	if !ok {
		h.fail(c, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompt": p, "pending": h.cache.IsPending(p.ID)})
}

func (h *Handler) updatePrompt(c *gin.Context) {
	var patch domain.PromptPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badBody(c)
		return
	}
	p, err := h.cache.UpdatePrompt(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompt": p, "pending": h.cache.IsPending(p.ID)})
}

func (h *Handler) deletePrompt(c *gin.Context) {
	if err := h.cache.DeletePrompt(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	p, err := h.cache.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompt": p})
}

func (h *Handler) duplicatePrompt(c *gin.Context) {
	p, err := h.cache.DuplicatePrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "prompt": p})
}

func (h *Handler) recordRun(c *gin.Context) {
	p, err := h.cache.RecordRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompt": p})
}

func (h *Handler) recordView(c *gin.Context) {
	p, err := h.cache.RecordView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "prompt": p})
}

func (h *Handler) versions(c *gin.Context) {
	items, err := h.cache.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "versions": items})
}

func (h *Handler) favorites(c *gin.Context) {
	items, err := h.cache.ListPrompts(domain.Filter{Folder: domain.FolderFavorites})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ids": h.cache.Favorites(), "prompts": items})
}
