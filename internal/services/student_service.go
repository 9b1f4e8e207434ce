package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/pkg/metrics"
)

// StudentService registers and resolves students by their chat identity.
type StudentService struct {
	db *gorm.DB
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(db *gorm.DB) (*StudentService, error) {
	if db == nil {
		return nil, errors.New("student service: db is required")
	}
	return &StudentService{db: db}, nil
}

// RegisterIfAbsent returns the student for externalID, creating it from name and group when missing.
// Concurrent first contacts converge on a single row.
func (s *StudentService) RegisterIfAbsent(ctx context.Context, externalID int64, name, group string) (*models.Student, error) {
	ctx = ensureContext(ctx)

	var student *models.Student
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		student, err = s.registerIfAbsent(tx, externalID, name, group)
		return err
	})
	metrics.ObserveOperation("student.register", err)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (s *StudentService) registerIfAbsent(tx *gorm.DB, externalID int64, name, group string) (*models.Student, error) {
	existing, err := findStudentByExternalID(tx, externalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrStudentNotFound) {
		return nil, err
	}

	candidate, err := models.NewStudent(externalID, name, group)
	if err != nil {
		return nil, err
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tg_id"}},
		DoNothing: true,
	}).Create(candidate).Error; err != nil {
		return nil, storeFailure(err, "register student")
	}

	return findStudentByExternalID(tx, externalID)
}

// GetByExternalID resolves a student by chat id.
func (s *StudentService) GetByExternalID(ctx context.Context, externalID int64) (*models.Student, error) {
	return findStudentByExternalID(s.db.WithContext(ensureContext(ctx)), externalID)
}

// GetByID resolves a student by primary key.
func (s *StudentService) GetByID(ctx context.Context, studentID int64) (*models.Student, error) {
	return findStudentByID(s.db.WithContext(ensureContext(ctx)), studentID)
}

// Count returns the number of registered students.
func (s *StudentService) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Student{}).Count(&total).Error; err != nil {
		return 0, storeFailure(err, "count students")
	}
	return total, nil
}

func findStudentByExternalID(tx *gorm.DB, externalID int64) (*models.Student, error) {
	var student models.Student
	err := tx.Take(&student, "tg_id = ?", externalID).Error
	if isNotFound(err) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("student service: lookup by external id: %w", err), "load student")
	}
	return &student, nil
}

func findStudentByID(tx *gorm.DB, studentID int64) (*models.Student, error) {
	var student models.Student
	err := tx.Take(&student, "student_id = ?", studentID).Error
	if isNotFound(err) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("student service: get student: %w", err), "load student")
	}
	return &student, nil
}
