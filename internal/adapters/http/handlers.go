package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/ucode/internal/app/orch"
	"github.com/dkeye/ucode/internal/domain"
)

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": domain.Languages()})
}

func starterTemplate(c *gin.Context) {
	lang := c.Param("lang")
	code, ok := domain.StarterCode(lang)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown language"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": lang, "code": code})
}

func rtcConfig(ice webrtc.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": ice.ICEServers})
	}
}

func stats(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Stats())
	}
}
