package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// PresenceService implements the pending -> ready -> {left, banned}
// state machine and room bans, spec.md §4.D.
type PresenceService struct {
	sessionRepo repository.AgentSessionRepository
	banRepo     repository.RoomBanRepository
	roomRepo    repository.RoomRepository
}

func NewPresenceService(sessionRepo repository.AgentSessionRepository, banRepo repository.RoomBanRepository, roomRepo repository.RoomRepository) *PresenceService {
	if sessionRepo == nil || banRepo == nil || roomRepo == nil {
		panic("all repositories must be non-nil for PresenceService")
	}
	return &PresenceService{sessionRepo: sessionRepo, banRepo: banRepo, roomRepo: roomRepo}
}

// Enter creates a pending session for agent in room, spec.md §4.D's
// room.enter. A prior banned account is rejected before a session row
// is even created.
func (s *PresenceService) Enter(ctx context.Context, room *domain.Room, agent domain.AgentID, now time.Time) (*domain.AgentSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "agent": agent.String()})

	if !room.IsOpen(now) {
		return nil, apperr.New(apperr.RoomClosed, "room is closed")
	}

	if _, err := s.banRepo.Find(ctx, room.ID, agent.Account.Label); err == nil {
		return nil, apperr.New(apperr.AccessDenied, "agent is banned from this room")
	}

	if existing, err := s.sessionRepo.FindActive(ctx, room.ID, agent); err == nil {
		return existing, nil
	}

	session := &domain.AgentSession{
		ID:      uuid.New(),
		AgentID: agent,
		RoomID:  room.ID,
		Status:  domain.SessionPending,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		logCtx.WithError(err).Error("failed to create agent session")
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to enter room", err)
	}
	return session, nil
}

// ConfirmSubscription flips a pending session to ready on the
// broker's subscription.create callback.
func (s *PresenceService) ConfirmSubscription(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, domain.SessionPending, domain.SessionReady); err != nil {
		return mapNotFound(err, apperr.InvalidSubscriptionObject, "no pending session for subscription")
	}
	return nil
}

// Leave drives pending|ready -> left. It runs only on an explicit
// room.leave; closing a websocket connection does not call it.
func (s *PresenceService) Leave(ctx context.Context, sessionID uuid.UUID, from domain.SessionStatus) error {
	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, from, domain.SessionLeft); err != nil {
		return mapNotFound(err, apperr.AgentNotEnteredTheRoom, "no active session to leave")
	}
	return nil
}

// Ban drives ready -> banned and records the ban so future room.enter
// calls for this account are rejected.
func (s *PresenceService) Ban(ctx context.Context, roomID uuid.UUID, agent domain.AgentID, now time.Time) error {
	session, err := s.sessionRepo.FindActive(ctx, roomID, agent)
	if err != nil {
		return mapNotFound(err, apperr.AgentNotEnteredTheRoom, "agent is not in this room")
	}
	if err := s.sessionRepo.UpdateStatus(ctx, session.ID, domain.SessionReady, domain.SessionBanned); err != nil {
		return mapNotFound(err, apperr.AgentNotEnteredTheRoom, "agent is not ready in this room")
	}
	ban := &domain.RoomBan{AccountLabel: agent.Account.Label, RoomID: roomID}
	if err := s.banRepo.Upsert(ctx, ban); err != nil {
		return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to record ban", err)
	}
	return nil
}

// ListActive returns every active (pending or ready) session in a
// room, the population agent.list surfaces.
func (s *PresenceService) ListActive(ctx context.Context, roomID uuid.UUID) ([]domain.AgentSession, error) {
	ready, err := s.sessionRepo.ListByRoom(ctx, roomID, domain.SessionReady)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to list agents", err)
	}
	pending, err := s.sessionRepo.ListByRoom(ctx, roomID, domain.SessionPending)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to list agents", err)
	}
	return append(ready, pending...), nil
}
