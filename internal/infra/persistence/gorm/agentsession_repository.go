package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// AgentSessionRepository is the GORM-backed repository.AgentSessionRepository.
type AgentSessionRepository struct {
	db *gorm.DB
}

func NewAgentSessionRepository(db *gorm.DB) *AgentSessionRepository {
	if db == nil {
		panic("gorm: nil db passed to NewAgentSessionRepository")
	}
	return &AgentSessionRepository{db: db}
}

func (r *AgentSessionRepository) FindActive(ctx context.Context, roomID uuid.UUID, agent domain.AgentID) (*domain.AgentSession, error) {
	var session domain.AgentSession
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND agent_id = ? AND status IN ?", roomID, agent.String(), []domain.SessionStatus{domain.SessionPending, domain.SessionReady}).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find active session for %s in room %s: %w", agent, roomID, err)
	}
	return &session, nil
}

func (r *AgentSessionRepository) Create(ctx context.Context, session *domain.AgentSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("gorm: create agent session %s: %w", session.ID, err)
	}
	return nil
}

func (r *AgentSessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus domain.SessionStatus) error {
	result := r.db.WithContext(ctx).
		Model(&domain.AgentSession{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return fmt.Errorf("gorm: transition session %s from %s to %s: %w", id, fromStatus, toStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AgentSessionRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, status domain.SessionStatus) ([]domain.AgentSession, error) {
	tx := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var sessions []domain.AgentSession
	if err := tx.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("gorm: list sessions for room %s: %w", roomID, err)
	}
	return sessions, nil
}

func (r *AgentSessionRepository) DeleteStaleReady(ctx context.Context, cutoffUnixNano int64) (int64, error) {
	cutoff := timeFromUnixNano(cutoffUnixNano)
	result := r.db.WithContext(ctx).
		Model(&domain.AgentSession{}).
		Where("status = ? AND created_at < ?", domain.SessionReady, cutoff).
		Update("status", domain.SessionLeft)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: sweep stale ready sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
