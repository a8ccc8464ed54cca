package prompts

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/library/transfer"
)

const maxImportBytes = 10 << 20

func (h *Handler) importLibrary(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		badBody(c)
		return
	}
	if len(data) > maxImportBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "import too large"})
		return
	}

	format := transfer.DetectFormat(data)
	if raw := c.Query("format"); raw != "" {
		if format, err = transfer.ParseFormat(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}

	res, err := h.cache.Import(c.Request.Context(), format, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

func (h *Handler) exportLibrary(c *gin.Context) {
	format, err := transfer.ParseFormat(c.DefaultQuery("format", string(transfer.FormatJSON)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	data, err := h.cache.Export(library.ExportOptions{Format: format, IDs: ids})
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := "application/json"
	if format == transfer.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	name := fmt.Sprintf("prompts-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}
