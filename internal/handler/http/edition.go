package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/foxford/event/internal/agentid"
	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/middleware"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
)

// EditionHandler mirrors edition.{create,delete,list,commit} and
// change.{create,delete,list} over plain HTTP, spec.md §4.F.
type EditionHandler struct {
	edition     *service.EditionService
	asynqClient *asynq.Client
}

func NewEditionHandler(edition *service.EditionService, asynqClient *asynq.Client) *EditionHandler {
	return &EditionHandler{edition: edition, asynqClient: asynqClient}
}

func (h *EditionHandler) CreateEdition(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		HandleServiceError(c, apperr.New(apperr.AccessDenied, "missing agent identity"))
		return
	}
	var req dto.CreateEditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	edition, err := h.edition.CreateEdition(c.Request.Context(), req.SourceRoomID, agent)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.EditionFromDomain(*edition))
}

func (h *EditionHandler) DeleteEdition(c *gin.Context) {
	editionID, err := uuid.Parse(c.Param("edition_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "edition_id must be a uuid"))
		return
	}
	if err := h.edition.DeleteEdition(c.Request.Context(), editionID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"edition_id": editionID})
}

func (h *EditionHandler) ListEditions(c *gin.Context) {
	sourceRoomID, err := uuid.Parse(c.Query("source_room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "source_room_id must be a uuid"))
		return
	}
	editions, err := h.edition.ListEditions(c.Request.Context(), sourceRoomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.EditionsFromDomain(editions))
}

func (h *EditionHandler) CommitEdition(c *gin.Context) {
	editionID, err := uuid.Parse(c.Param("edition_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "edition_id must be a uuid"))
		return
	}
	var req struct {
		OffsetMs int64 `json:"offset,omitempty"`
	}
	_ = c.ShouldBindJSON(&req)

	payload, err := tasks.NewEditionCommitTask(tasks.EditionCommitPayload{EditionID: editionID, OffsetMs: req.OffsetMs})
	if err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue commit task", err))
		return
	}
	if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), asynq.NewTask(tasks.TypeEditionCommit, payload), asynq.Queue("critical")); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue commit task", err))
		return
	}
	SuccessResponse(c, http.StatusAccepted, dto.CommitNotification{Status: "accepted"})
}

func (h *EditionHandler) CreateChange(c *gin.Context) {
	var req dto.CreateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	change := &domain.Change{
		EditionID:     req.EditionID,
		Kind:          req.Kind,
		EventID:       req.EventID,
		NewKind:       req.NewKind,
		NewSet:        req.NewSet,
		NewLabel:      req.NewLabel,
		NewData:       req.NewData,
		NewOccurredAt: req.NewOccurredAt,
	}
	if req.NewCreatedBy != nil {
		parsed, err := agentid.Parse(*req.NewCreatedBy)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "created_by is not a valid agent identifier"))
			return
		}
		created := domain.AgentID(parsed)
		change.NewCreatedBy = &created
	}
	if err := h.edition.CreateChange(c.Request.Context(), change); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.ChangeFromDomain(*change))
}

func (h *EditionHandler) DeleteChange(c *gin.Context) {
	changeID, err := uuid.Parse(c.Param("change_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "change_id must be a uuid"))
		return
	}
	if err := h.edition.DeleteChange(c.Request.Context(), changeID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"change_id": changeID})
}

func (h *EditionHandler) ListChanges(c *gin.Context) {
	editionID, err := uuid.Parse(c.Query("edition_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "edition_id must be a uuid"))
		return
	}
	changes, err := h.edition.ListChanges(c.Request.Context(), editionID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.ChangesFromDomain(changes))
}
