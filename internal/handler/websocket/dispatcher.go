// Package websocket implements the envelope-contract dispatcher that
// backs every websocket-originated request, spec.md §6.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/agentid"
	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/hub"
	"github.com/foxford/event/internal/middleware"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"

	"github.com/hibiken/asynq"
)

// Dispatcher decodes one envelope frame per invocation, routes it by
// Method to the service layer, and writes the resulting Response
// envelope back onto the originating client, broadcasting to
// rooms/{room_id}/events or audiences/{audience}/events where spec.md
// §6 calls for it.
type Dispatcher struct {
	hub *hub.Hub

	room     *service.RoomService
	event    *service.EventService
	state    *service.StateService
	presence *service.PresenceService
	adjust   *service.AdjustService
	edition  *service.EditionService

	roomRepo repository.RoomRepository

	asynqClient *asynq.Client

	upgrader gorillaws.Upgrader
}

func NewDispatcher(
	h *hub.Hub,
	roomSvc *service.RoomService,
	eventSvc *service.EventService,
	stateSvc *service.StateService,
	presenceSvc *service.PresenceService,
	adjustSvc *service.AdjustService,
	editionSvc *service.EditionService,
	roomRepo repository.RoomRepository,
	asynqClient *asynq.Client,
) *Dispatcher {
	return &Dispatcher{
		hub:         h,
		room:        roomSvc,
		event:       eventSvc,
		state:       stateSvc,
		presence:    presenceSvc,
		adjust:      adjustSvc,
		edition:     editionSvc,
		roomRepo:    roomRepo,
		asynqClient: asynqClient,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades an authenticated request to a websocket
// connection and hands it to the Hub/Client machinery.
func (d *Dispatcher) HandleConnection(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	conn, err := d.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	trusted := middleware.IsTrustedFromContext(c)
	client := hub.NewClient(d.hub, conn, agent, trusted, d, func(cl *hub.Client) {})
	client.Run()
}

// Dispatch implements hub.Dispatcher.
func (d *Dispatcher) Dispatch(client *hub.Client, message []byte) {
	ctx := context.Background()

	var req dto.Request
	if err := json.Unmarshal(message, &req); err != nil {
		client.Send(mustMarshal(dto.NewErrorResponse("", apperr.New(apperr.MessageHandlingFailed, "malformed envelope"))))
		return
	}

	if req.Type != "request" {
		client.Send(mustMarshal(dto.NewErrorResponse(req.CorrelationData, apperr.New(apperr.MessageHandlingFailed, "unsupported frame type"))))
		return
	}

	payload, err := d.route(ctx, client, req)
	if err != nil {
		client.Send(mustMarshal(dto.NewErrorResponse(req.CorrelationData, err)))
		return
	}
	if payload == nil {
		return // no route currently returns a nil payload without an error
	}
	client.Send(mustMarshal(dto.NewOKResponse(req.CorrelationData, "200", payload)))
}

func mustMarshal(r dto.Response) []byte {
	buf, err := json.Marshal(r)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal response envelope")
		return []byte(`{"status":"500","correlation_data":"","payload":{}}`)
	}
	return buf
}

func (d *Dispatcher) route(ctx context.Context, client *hub.Client, req dto.Request) (interface{}, error) {
	agent := client.AgentID()

	switch req.Method {
	case "room.create":
		return d.roomCreate(ctx, agent, req.Payload)
	case "room.read":
		return d.roomRead(ctx, req.Payload)
	case "room.update":
		return d.roomUpdate(ctx, req.Payload)
	case "room.enter":
		return d.roomEnter(ctx, client, req.Payload)
	case "room.leave":
		return d.roomLeave(ctx, client, req.Payload)
	case "room.adjust":
		return d.roomAdjust(ctx, req.Payload)
	case "room.dump_events":
		return d.roomDumpEvents(ctx, req.Payload)
	case "room.locked_types":
		return d.roomLockedTypes(ctx, req.Payload)
	case "room.whiteboard_access":
		return d.roomWhiteboardAccess(ctx, req.Payload)
	case "event.create":
		return d.eventCreate(ctx, client, req.Payload)
	case "event.list":
		return d.eventList(ctx, req.Payload)
	case "state.read":
		return d.stateRead(ctx, req.Payload)
	case "agent.list":
		return d.agentList(ctx, req.Payload)
	case "agent.update":
		return d.agentUpdate(ctx, agent, req.Payload)
	case "edition.create":
		return d.editionCreate(ctx, agent, req.Payload)
	case "edition.delete":
		return d.editionDelete(ctx, req.Payload)
	case "edition.list":
		return d.editionList(ctx, req.Payload)
	case "edition.commit":
		return d.editionCommit(ctx, req.Payload)
	case "change.create":
		return d.changeCreate(ctx, agent, req.Payload)
	case "change.delete":
		return d.changeDelete(ctx, req.Payload)
	case "change.list":
		return d.changeList(ctx, req.Payload)
	default:
		return nil, apperr.New(apperr.UnknownMethod, "unrecognized method "+req.Method)
	}
}

func decode(payload json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.Wrap(apperr.InvalidPayload, "malformed payload", err)
	}
	return nil
}

func (d *Dispatcher) broadcastRoom(ctx context.Context, roomID uuid.UUID, label string, payload interface{}) {
	buf, err := json.Marshal(dto.BroadcastEvent{Label: label, Payload: payload})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal room broadcast")
		return
	}
	if err := d.hub.PublishRoom(ctx, roomID, buf); err != nil {
		logrus.WithError(err).Error("failed to publish room broadcast")
	}
}

func (d *Dispatcher) broadcastAudience(ctx context.Context, audience, label string, payload interface{}) {
	buf, err := json.Marshal(dto.BroadcastEvent{Label: label, Payload: payload})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal audience broadcast")
		return
	}
	if err := d.hub.PublishAudience(ctx, audience, buf); err != nil {
		logrus.WithError(err).Error("failed to publish audience broadcast")
	}
}

// --- room.* ---

func (d *Dispatcher) roomCreate(ctx context.Context, agent domain.AgentID, raw json.RawMessage) (interface{}, error) {
	var req dto.CreateRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.OpenedAt.IsZero() {
		req.OpenedAt = time.Now()
	}
	room, err := d.room.CreateRoom(ctx, service.CreateRoomParams{
		Audience:        req.Audience,
		OpenedAt:        req.OpenedAt,
		ClosedAt:        req.ClosedAt,
		Tags:            req.Tags,
		PreserveHistory: req.PreserveHistory,
		Kind:            req.Kind,
		ClassroomID:     req.ClassroomID,
	})
	if err != nil {
		return nil, err
	}
	resp := dto.RoomFromDomain(room)
	d.broadcastAudience(ctx, room.Audience, "room.create", resp)
	return resp, nil
}

type roomIDRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
}

func (d *Dispatcher) roomRead(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req roomIDRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.ReadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	return dto.RoomFromDomain(room), nil
}

func (d *Dispatcher) roomUpdate(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var envelope struct {
		RoomID uuid.UUID `json:"room_id" binding:"required"`
		dto.UpdateRoomRequest
	}
	if err := decode(raw, &envelope); err != nil {
		return nil, err
	}
	room, err := d.room.UpdateRoom(ctx, envelope.RoomID, service.UpdateRoomParams{
		ClosedAt: envelope.ClosedAt,
		Tags:     envelope.Tags,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	resp := dto.RoomFromDomain(room)
	d.broadcastAudience(ctx, room.Audience, "room.update", resp)
	d.broadcastRoom(ctx, room.ID, "room.update", resp)
	return resp, nil
}

func (d *Dispatcher) roomLockedTypes(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req struct {
		RoomID      uuid.UUID              `json:"room_id" binding:"required"`
		LockedTypes map[string]interface{} `json:"locked_types"`
	}
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.UpdateRoom(ctx, req.RoomID, service.UpdateRoomParams{LockedTypes: req.LockedTypes}, time.Now())
	if err != nil {
		return nil, err
	}
	resp := dto.RoomFromDomain(room)
	d.broadcastRoom(ctx, room.ID, "room.update", resp)
	return resp, nil
}

func (d *Dispatcher) roomWhiteboardAccess(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req struct {
		RoomID           uuid.UUID              `json:"room_id" binding:"required"`
		WhiteboardAccess map[string]interface{} `json:"whiteboard_access"`
	}
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.UpdateRoom(ctx, req.RoomID, service.UpdateRoomParams{WhiteboardAccess: req.WhiteboardAccess}, time.Now())
	if err != nil {
		return nil, err
	}
	resp := dto.RoomFromDomain(room)
	d.broadcastRoom(ctx, room.ID, "room.update", resp)
	return resp, nil
}

func (d *Dispatcher) roomEnter(ctx context.Context, client *hub.Client, raw json.RawMessage) (interface{}, error) {
	var req dto.EnterRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.ReadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	agent := client.AgentID()
	session, err := d.presence.Enter(ctx, room, agent, time.Now())
	if err != nil {
		return nil, err
	}
	d.hub.SubscribeRoom(req.RoomID, client)
	resp := dto.AgentFromDomain(*session)
	d.broadcastRoom(ctx, req.RoomID, "room.enter", resp)
	return resp, nil
}

func (d *Dispatcher) roomLeave(ctx context.Context, client *hub.Client, raw json.RawMessage) (interface{}, error) {
	var req dto.LeaveRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	agent := client.AgentID()
	active, err := d.roomActiveSession(ctx, req.RoomID, agent)
	if err != nil {
		return nil, err
	}
	if err := d.presence.Leave(ctx, active.ID, active.Status); err != nil {
		return nil, err
	}
	d.hub.UnsubscribeRoom(req.RoomID, client)
	resp := dto.AgentResponse{AgentID: agent.String(), RoomID: req.RoomID, Status: string(domain.SessionLeft)}
	d.broadcastRoom(ctx, req.RoomID, "room.leave", resp)
	return resp, nil
}

func (d *Dispatcher) roomActiveSession(ctx context.Context, roomID uuid.UUID, agent domain.AgentID) (*domain.AgentSession, error) {
	sessions, err := d.presence.ListActive(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].AgentID == agent {
			return &sessions[i], nil
		}
	}
	return nil, apperr.New(apperr.AgentNotEnteredTheRoom, "agent is not in this room")
}

func (d *Dispatcher) roomAdjust(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.AdjustRoomRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	roomID, err := extractRoomID(raw)
	if err != nil {
		return nil, err
	}

	if _, err := d.adjust.Validate(ctx, service.AdjustRequest{
		RoomID:    roomID,
		StartedAt: req.StartedAt,
		Segments:  req.Segments,
		OffsetMs:  req.OffsetMs,
	}); err != nil {
		return nil, err
	}

	payload, err := tasks.NewRoomAdjustTask(tasks.RoomAdjustPayload{
		RoomID:    roomID,
		StartedAt: req.StartedAt,
		Segments:  req.Segments,
		OffsetMs:  req.OffsetMs,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue adjust task", err)
	}
	if _, err := d.asynqClient.EnqueueContext(ctx, asynq.NewTask(tasks.TypeRoomAdjust, payload), asynq.Queue("critical")); err != nil {
		return nil, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue adjust task", err)
	}
	return dto.AdjustNotification{Status: "accepted", SourceRoomID: roomID}, nil
}

func extractRoomID(raw json.RawMessage) (uuid.UUID, error) {
	var req roomIDRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.RoomID == uuid.Nil {
		return uuid.Nil, apperr.New(apperr.InvalidPayload, "room_id is required")
	}
	return req.RoomID, nil
}

func (d *Dispatcher) roomDumpEvents(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req roomIDRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.ReadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	events, err := d.event.ListEvents(ctx, service.ListEventsParams{Room: req.RoomID, Direction: "forward", Limit: 0})
	if err != nil {
		return nil, err
	}
	resp := dto.ListEventsResponse{Events: dto.EventsFromDomain(events)}
	d.broadcastAudience(ctx, room.Audience, "room.dump_events", resp)
	return dto.AdjustNotification{Status: "accepted", SourceRoomID: req.RoomID}, nil
}

// --- event.* ---

func (d *Dispatcher) eventCreate(ctx context.Context, client *hub.Client, raw json.RawMessage) (interface{}, error) {
	var req dto.CreateEventRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	room, err := d.room.ReadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	event, err := d.event.CreateEvent(ctx, service.CreateEventParams{
		Room:           room,
		Agent:          client.AgentID(),
		IsTrustedAgent: client.IsTrusted(),
		Kind:           req.Kind,
		Set:            req.Set,
		Label:          req.Label,
		Attribute:      req.Attribute,
		Data:           req.Data,
		OccurredAt:     req.OccurredAt,
		IsPersistent:   req.IsPersistent,
		IsClaim:        req.IsClaim,
		Now:            time.Now(),
	})
	if err != nil {
		return nil, err
	}
	resp := dto.EventFromDomain(*event)
	d.broadcastRoom(ctx, req.RoomID, "event.create", resp)
	if req.IsClaim {
		d.broadcastAudience(ctx, room.Audience, "event.create", resp)
	}
	return resp, nil
}

func (d *Dispatcher) eventList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.ListEventsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	events, err := d.event.ListEvents(ctx, service.ListEventsParams{
		Room:      req.RoomID,
		Kind:      req.Kind,
		Set:       req.Set,
		Label:     req.Label,
		Removed:   req.Removed,
		Cursor:    req.LastOccurredAt,
		Direction: req.Direction,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.ListEventsResponse{Events: dto.EventsFromDomain(events)}, nil
}

// --- state.read ---

func (d *Dispatcher) stateRead(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.ReadStateRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	results, err := d.state.ReadState(ctx, service.ReadStateParams{
		RoomID:             req.RoomID,
		Sets:               req.Sets,
		OccurredAtPivot:    req.OccurredAt,
		OriginalOccurredAt: req.OriginalOccurredAt,
		Direction:          req.Direction,
		Limit:              req.Limit,
	})
	if err != nil {
		return nil, err
	}
	resp := make(dto.ReadStateResponse, len(results))
	for _, r := range results {
		resp[r.Set] = dto.StateSetResponse{Set: r.Set, Events: dto.EventsFromDomain(r.Events), HasNext: r.HasNext}
	}
	return resp, nil
}

// --- agent.* ---

func (d *Dispatcher) agentList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.ListAgentsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	sessions, err := d.presence.ListActive(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AgentResponse, len(sessions))
	for i, s := range sessions {
		out[i] = dto.AgentFromDomain(s)
	}
	return dto.ListAgentsResponse{Agents: out}, nil
}

func (d *Dispatcher) agentUpdate(ctx context.Context, actor domain.AgentID, raw json.RawMessage) (interface{}, error) {
	var req struct {
		RoomID  uuid.UUID `json:"room_id" binding:"required"`
		AgentID string    `json:"agent_id" binding:"required"`
		Ban     *bool     `json:"ban,omitempty"`
	}
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	target, err := agentid.Parse(req.AgentID)
	if err != nil {
		return nil, apperr.New(apperr.InvalidPayload, "agent_id is not a valid agent identifier")
	}
	if req.Ban == nil || !*req.Ban {
		return nil, apperr.New(apperr.InvalidPayload, "only ban=true is supported by agent.update")
	}
	room, err := d.room.ReadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := d.presence.Ban(ctx, req.RoomID, domain.AgentID(target), time.Now()); err != nil {
		return nil, err
	}
	resp := gin.H{"room_id": req.RoomID, "agent_id": target.String(), "banned": true}
	d.broadcastRoom(ctx, req.RoomID, "agent.update", resp)
	d.broadcastAudience(ctx, room.Audience, "agent.ban", resp)
	return resp, nil
}

// --- edition.* / change.* ---

func (d *Dispatcher) editionCreate(ctx context.Context, agent domain.AgentID, raw json.RawMessage) (interface{}, error) {
	var req dto.CreateEditionRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	edition, err := d.edition.CreateEdition(ctx, req.SourceRoomID, agent)
	if err != nil {
		return nil, err
	}
	return dto.EditionFromDomain(*edition), nil
}

func (d *Dispatcher) editionDelete(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req struct {
		EditionID uuid.UUID `json:"edition_id" binding:"required"`
	}
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if err := d.edition.DeleteEdition(ctx, req.EditionID); err != nil {
		return nil, err
	}
	return gin.H{"edition_id": req.EditionID}, nil
}

func (d *Dispatcher) editionList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.ListEditionsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	editions, err := d.edition.ListEditions(ctx, req.SourceRoomID)
	if err != nil {
		return nil, err
	}
	return dto.EditionsFromDomain(editions), nil
}

func (d *Dispatcher) editionCommit(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.CommitEditionRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	payload, err := tasks.NewEditionCommitTask(tasks.EditionCommitPayload{EditionID: req.EditionID, OffsetMs: req.OffsetMs})
	if err != nil {
		return nil, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue commit task", err)
	}
	if _, err := d.asynqClient.EnqueueContext(ctx, asynq.NewTask(tasks.TypeEditionCommit, payload), asynq.Queue("critical")); err != nil {
		return nil, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue commit task", err)
	}
	return dto.CommitNotification{Status: "accepted"}, nil
}

func (d *Dispatcher) changeCreate(ctx context.Context, agent domain.AgentID, raw json.RawMessage) (interface{}, error) {
	var req dto.CreateChangeRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
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
			return nil, apperr.New(apperr.InvalidPayload, "created_by is not a valid agent identifier")
		}
		created := domain.AgentID(parsed)
		change.NewCreatedBy = &created
	}
	if err := d.edition.CreateChange(ctx, change); err != nil {
		return nil, err
	}
	return dto.ChangeFromDomain(*change), nil
}

func (d *Dispatcher) changeDelete(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req struct {
		ChangeID uuid.UUID `json:"change_id" binding:"required"`
	}
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if err := d.edition.DeleteChange(ctx, req.ChangeID); err != nil {
		return nil, err
	}
	return gin.H{"change_id": req.ChangeID}, nil
}

func (d *Dispatcher) changeList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var req dto.ListChangesRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	changes, err := d.edition.ListChanges(ctx, req.EditionID)
	if err != nil {
		return nil, err
	}
	return dto.ChangesFromDomain(changes), nil
}
