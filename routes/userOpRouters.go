package routes

import (
	"aakit/controllers"

	"github.com/gin-gonic/gin"
)

func SetupUserOpRouter(r *gin.Engine, userOpController *controllers.UserOpController) {
	r.POST("/userop", userOpController.SubmitUserOp)
	r.GET("/userop/:hash", userOpController.GetUserOp)
}
