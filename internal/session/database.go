package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studhelper/studhelper/internal/models"
)

// DatabaseStore implements Store on the primary SQL database (dialog_sessions table).
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Get(ctx context.Context, userID int64) (State, bool, error) {
	if s == nil {
		return State{}, false, errNotInitialised
	}

	var entry models.DialogSession
	err := s.db.WithContext(ensureContext(ctx)).Take(&entry, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session: load %d: %w", userID, err)
	}
	return State{Step: entry.Step, Data: cloneData(entry.Data.Data())}, true, nil
}

func (s *DatabaseStore) SetState(ctx context.Context, userID int64, step string, data map[string]string) error {
	if s == nil {
		return errNotInitialised
	}

	entry := models.DialogSession{
		UserID:    userID,
		Step:      step,
		Data:      datatypes.NewJSONType(cloneData(data)),
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ensureContext(ctx)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"step", "data", "updated_at"}),
		}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("session: save %d: %w", userID, err)
	}
	return nil
}

func (s *DatabaseStore) Update(ctx context.Context, userID int64, data map[string]string) error {
	if s == nil {
		return errNotInitialised
	}

	return s.db.WithContext(ensureContext(ctx)).Transaction(func(tx *gorm.DB) error {
		var entry models.DialogSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session: load %d: %w", userID, err)
		}

		merged := mergeData(cloneData(entry.Data.Data()), data)
		return tx.Model(&models.DialogSession{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"data":       datatypes.NewJSONType(merged),
				"updated_at": time.Now(),
			}).Error
	})
}

func (s *DatabaseStore) Clear(ctx context.Context, userID int64) error {
	if s == nil {
		return errNotInitialised
	}
	if err := s.db.WithContext(ensureContext(ctx)).Where("user_id = ?", userID).Delete(&models.DialogSession{}).Error; err != nil {
		return fmt.Errorf("session: clear %d: %w", userID, err)
	}
	return nil
}
