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
)

// UpsertRatingInput describes one peer assessment.
type UpsertRatingInput struct {
	AssessorID    int64
	AssessedID    int64
	Score         int
	Advantages    string
	Disadvantages string
}

// RatingService stores peer ratings, keeping the latest one per (assessor, assessed) pair.
type RatingService struct {
	db        *gorm.DB
	minRating int
	maxRating int
	now       func() time.Time
}

// NewRatingService constructs a RatingService instance.
func NewRatingService(db *gorm.DB, cfg DomainConfig) (*RatingService, error) {
	if db == nil {
		return nil, errors.New("rating service: db is required")
	}
	cfg = cfg.normalised()
	return &RatingService{
		db:        db,
		minRating: cfg.MinRating,
		maxRating: cfg.MaxRating,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Bounds returns the accepted score range.
func (s *RatingService) Bounds() (int, int) { return s.minRating, s.maxRating }

// Upsert records the assessment, replacing an earlier one for the same pair.
func (s *RatingService) Upsert(ctx context.Context, input UpsertRatingInput) (*models.Rating, error) {
	ctx = ensureContext(ctx)

	rating, err := models.NewRating(input.AssessorID, input.AssessedID, input.Score, s.minRating, s.maxRating, input.Advantages, input.Disadvantages)
	if err != nil {
		metrics.ObserveOperation("rating.upsert", err)
		return nil, err
	}
	rating.RateDate = s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []int64{input.AssessorID, input.AssessedID} {
			if _, err := findStudentByID(tx, id); err != nil {
				return err
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessor_student_id"}, {Name: "assessored_student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"overall_rating", "advantages", "disadvantages", "rate_date"}),
		}).Create(rating).Error; err != nil {
			return storeFailure(fmt.Errorf("rating service: upsert: %w", err), "save rating")
		}

		var stored models.Rating
		if err := tx.Take(&stored, "assessor_student_id = ? AND assessored_student_id = ?", input.AssessorID, input.AssessedID).Error; err != nil {
			return storeFailure(fmt.Errorf("rating service: reload: %w", err), "save rating")
		}
		rating = &stored
		return nil
	})
	metrics.ObserveOperation("rating.upsert", err)
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// TeammatesNotYetRated returns the assessor's teammates that have no rating from them yet.
// A student without a team has nobody to rate.
func (s *RatingService) TeammatesNotYetRated(ctx context.Context, assessorID int64) ([]models.Student, error) {
	db := s.db.WithContext(ensureContext(ctx))

	membership, err := findMembership(db, assessorID)
	if errors.Is(err, ErrNotInTeam) {
		return []models.Student{}, nil
	}
	if err != nil {
		return nil, err
	}

	rated := db.Model(&models.Rating{}).
		Select("assessored_student_id").
		Where("assessor_student_id = ?", assessorID)

	var students []models.Student
	err = teammatesQuery(db, membership.TeamID, assessorID).
		Where("students.student_id NOT IN (?)", rated).
		Order("students.name").
		Find(&students).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("rating service: not yet rated: %w", err), "list teammates")
	}
	return students, nil
}

// ReceivedBy lists ratings about studentID with the assessor preloaded, newest first.
func (s *RatingService) ReceivedBy(ctx context.Context, studentID int64) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("Assessor").
		Where("assessored_student_id = ?", studentID).
		Order("rate_date DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("rating service: received: %w", err), "list ratings")
	}
	return ratings, nil
}

// GivenBy lists ratings written by studentID with the assessed student preloaded, newest first.
func (s *RatingService) GivenBy(ctx context.Context, studentID int64) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("Assessed").
		Where("assessor_student_id = ?", studentID).
		Order("rate_date DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("rating service: given: %w", err), "list ratings")
	}
	return ratings, nil
}
