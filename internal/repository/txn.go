package repository

import "context"

// Repos bundles the repository interfaces a transactional operation
// needs, all bound to the same in-flight transaction.
type Repos struct {
	Room       RoomRepository
	Event      EventRepository
	Adjustment AdjustmentRepository
	Edition    EditionRepository
	Change     ChangeRepository
}

// Transactor runs fn inside a single database transaction, rolling
// back on error or panic. The adjust and edition commit engines are
// the only callers: every other operation is a single-repository call
// that doesn't need cross-aggregate atomicity.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
