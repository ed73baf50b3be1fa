package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/apperr"
)

// HandleServiceError writes err as an RFC 7807 problem body, using the
// apperr taxonomy's status mapping, mirroring the websocket surface's
// error envelope shape.
func HandleServiceError(c *gin.Context, err error) {
	problem := apperr.ToProblemDetails(err)
	if problem.Status >= 500 {
		logrus.WithError(err).Error("request failed")
	}
	c.JSON(problem.Status, problem)
}
