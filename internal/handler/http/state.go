package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/service"
)

// StateHandler mirrors state.read over plain HTTP, spec.md §4.C.
type StateHandler struct {
	state *service.StateService
}

func NewStateHandler(state *service.StateService) *StateHandler {
	return &StateHandler{state: state}
}

func (h *StateHandler) ReadState(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	sets := c.QueryArray("sets")
	if len(sets) == 1 && strings.Contains(sets[0], ",") {
		sets = strings.Split(sets[0], ",")
	}
	if len(sets) == 0 {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "sets is required"))
		return
	}
	params := service.ReadStateParams{RoomID: roomID, Sets: sets, Direction: c.DefaultQuery("direction", "backward")}
	if v := c.Query("occurred_at"); v != "" {
		pivot, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "occurred_at must be an integer"))
			return
		}
		params.OccurredAtPivot = &pivot
	}
	if v := c.Query("original_occurred_at"); v != "" {
		pivot, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "original_occurred_at must be an integer"))
			return
		}
		params.OriginalOccurredAt = &pivot
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "limit must be an integer"))
			return
		}
		params.Limit = limit
	}
	results, err := h.state.ReadState(c.Request.Context(), params)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := make(dto.ReadStateResponse, len(results))
	for _, r := range results {
		resp[r.Set] = dto.StateSetResponse{Set: r.Set, Events: dto.EventsFromDomain(r.Events), HasNext: r.HasNext}
	}
	SuccessResponse(c, http.StatusOK, resp)
}
