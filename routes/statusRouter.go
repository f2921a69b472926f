package routes

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// SetupStatusRouter exposes liveness and the EntryPoint bundlerd serves.
func SetupStatusRouter(r *gin.Engine, entryPoint common.Address) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/entrypoints", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entryPoints": []string{entryPoint.Hex()}})
	})
}
