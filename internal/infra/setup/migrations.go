package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/foxford/event/internal/domain"
)

// MigrateDB auto-migrates every table the service owns. Unlike the
// bespoke raw-SQL table creation an earlier revision of this package
// used for hand-tuned index lengths, none of these models need
// anything AutoMigrate can't express: every VARCHAR column already
// carries an explicit `size` tag in its struct definition.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("setup: cannot migrate with a nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.Room{},
		&domain.Event{},
		&domain.AgentSession{},
		&domain.RoomBan{},
		&domain.Adjustment{},
		&domain.Edition{},
		&domain.Change{},
	)
	if err != nil {
		return fmt.Errorf("setup: auto-migrate failed: %w", err)
	}

	logrus.Info("database migration completed successfully")
	return nil
}
