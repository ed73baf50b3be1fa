package http

import "github.com/gin-gonic/gin"

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
