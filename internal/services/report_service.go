package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/pkg/metrics"
	"github.com/studhelper/studhelper/pkg/validator"
)

// ReportService stores one sprint report per student and sprint.
type ReportService struct {
	db        *gorm.DB
	maxSprint int
	now       func() time.Time
}

// NewReportService constructs a ReportService instance.
func NewReportService(db *gorm.DB, cfg DomainConfig) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	return &ReportService{
		db:        db,
		maxSprint: cfg.normalised().MaxSprint,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// MaxSprint returns the highest accepted sprint number.
func (s *ReportService) MaxSprint() int { return s.maxSprint }

// Upsert stores text as the student's report for sprintNum, overwriting any earlier submission.
// created reports whether a new row was inserted.
func (s *ReportService) Upsert(ctx context.Context, studentID int64, sprintNum int, text string) (*models.SprintReport, bool, error) {
	ctx = ensureContext(ctx)

	if !validator.IsValidSprint(sprintNum, s.maxSprint) {
		return nil, false, ErrInvalidSprint
	}
	report, err := models.NewSprintReport(studentID, sprintNum, text)
	if err != nil {
		return nil, false, err
	}
	report.ReportDate = s.now()

	var created bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findStudentByID(tx, studentID); err != nil {
			return err
		}

		_, err := findReport(tx, studentID, sprintNum)
		switch {
		case errors.Is(err, ErrReportNotFound):
			created = true
		case err != nil:
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "sprint_num"}},
			DoUpdates: clause.AssignmentColumns([]string{"report_text", "report_date"}),
		}).Create(report).Error; err != nil {
			return storeFailure(fmt.Errorf("report service: upsert: %w", err), "save report")
		}

		stored, err := findReport(tx, studentID, sprintNum)
		if err != nil {
			return err
		}
		report = stored
		return nil
	})
	metrics.ObserveOperation("report.upsert", err)
	if err != nil {
		return nil, false, err
	}
	return report, created, nil
}

// ListByStudent returns the student's reports ordered by sprint.
func (s *ReportService) ListByStudent(ctx context.Context, studentID int64) ([]models.SprintReport, error) {
	var reports []models.SprintReport
	err := s.db.WithContext(ensureContext(ctx)).
		Where("student_id = ?", studentID).
		Order("sprint_num").
		Find(&reports).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("report service: list by student: %w", err), "list reports")
	}
	return reports, nil
}

// ListByTeam returns every member's reports with the author preloaded, by sprint then author name.
func (s *ReportService) ListByTeam(ctx context.Context, teamID int64) ([]models.SprintReport, error) {
	var reports []models.SprintReport
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("Student").
		Joins("JOIN team_members ON team_members.student_id = sprint_reports.student_id").
		Joins("JOIN students ON students.student_id = sprint_reports.student_id").
		Where("team_members.team_id = ?", teamID).
		Order("sprint_reports.sprint_num").
		Order("students.name").
		Find(&reports).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("report service: list by team: %w", err), "list reports")
	}
	return reports, nil
}

// Get returns the student's report for sprintNum.
func (s *ReportService) Get(ctx context.Context, studentID int64, sprintNum int) (*models.SprintReport, error) {
	return findReport(s.db.WithContext(ensureContext(ctx)), studentID, sprintNum)
}

// Delete removes the student's report for sprintNum.
func (s *ReportService) Delete(ctx context.Context, studentID int64, sprintNum int) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("student_id = ? AND sprint_num = ?", studentID, sprintNum).
		Delete(&models.SprintReport{})
	err := result.Error
	if err != nil {
		err = storeFailure(fmt.Errorf("report service: delete: %w", err), "delete report")
	} else if result.RowsAffected == 0 {
		err = ErrReportNotFound
	}
	metrics.ObserveOperation("report.delete", err)
	return err
}

func findReport(tx *gorm.DB, studentID int64, sprintNum int) (*models.SprintReport, error) {
	var report models.SprintReport
	err := tx.Take(&report, "student_id = ? AND sprint_num = ?", studentID, sprintNum).Error
	if isNotFound(err) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("report service: get: %w", err), "load report")
	}
	return &report, nil
}
