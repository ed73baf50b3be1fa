package http

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/hub"
)

func publish(c *gin.Context, h *hub.Hub, roomID uuid.UUID, label string, payload interface{}) {
	buf, err := json.Marshal(dto.BroadcastEvent{Label: label, Payload: payload})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal room broadcast")
		return
	}
	if err := h.PublishRoom(c.Request.Context(), roomID, buf); err != nil {
		logrus.WithError(err).Error("failed to publish room broadcast")
	}
}

func publishAudience(c *gin.Context, h *hub.Hub, audience, label string, payload interface{}) {
	buf, err := json.Marshal(dto.BroadcastEvent{Label: label, Payload: payload})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal audience broadcast")
		return
	}
	if err := h.PublishAudience(c.Request.Context(), audience, buf); err != nil {
		logrus.WithError(err).Error("failed to publish audience broadcast")
	}
}
