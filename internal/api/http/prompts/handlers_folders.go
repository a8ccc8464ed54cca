package prompts

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// rootFolder addresses the top level in /folders/:id/children.
const rootFolder = "root"

type folderView struct {
	domain.Folder
	PromptCount int  `json:"prompt_count"`
	Pending     bool `json:"pending"`
}

func (h *Handler) view(f domain.Folder) folderView {
	return folderView{Folder: f, PromptCount: h.cache.PromptCount(f.ID), Pending: h.cache.IsPending(f.ID)}
}

func (h *Handler) views(folders []domain.Folder) []folderView {
	out := make([]folderView, 0, len(folders))
	for _, f := range folders {
		out = append(out, h.view(f))
	}
	return out
}

func (h *Handler) listFolders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "folders": h.views(h.cache.Folders())})
}

func (h *Handler) createFolder(c *gin.Context) {
	var in domain.FolderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c)
		return
	}
	f, err := h.cache.CreateFolder(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "folder": h.view(f)})
}

func (h *Handler) getFolder(c *gin.Context) {
	id := c.Param("id")
	f, ok := h.cache.GetFolder(id)
	if !ok {
		h.fail(c, fmt.Errorf("%w: %s", domain.ErrFolderNotFound, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "folder": h.view(f)})
}

func (h *Handler) updateFolder(c *gin.Context) {
	var patch domain.FolderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badBody(c)
		return
	}
	f, err := h.cache.UpdateFolder(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "folder": h.view(f)})
}

func (h *Handler) deleteFolder(c *gin.Context) {
	if err := h.cache.DeleteFolder(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) children(c *gin.Context) {
	parent := c.Param("id")
	if parent == rootFolder {
		parent = ""
	} else if _, ok := h.cache.GetFolder(parent); !ok {
		h.fail(c, fmt.Errorf("%w: %s", domain.ErrFolderNotFound, parent))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "folders": h.views(h.cache.GetChildren(parent))})
}
