package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/session", h.SignIn)
	rg.GET("/session", h.Current)
	rg.DELETE("/session", h.SignOut)
}
