package models

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/validator"
)

// Rating is one student's assessment of a teammate. Only the latest rating per pair is kept.
type Rating struct {
	RatingID            int64     `gorm:"column:rating_id;primaryKey;autoIncrement" json:"rating_id"`
	AssessorStudentID   int64     `gorm:"column:assessor_student_id;not null;uniqueIndex:idx_ratings_pair" json:"assessor_student_id"`
	AssessoredStudentID int64     `gorm:"column:assessored_student_id;not null;uniqueIndex:idx_ratings_pair;index;check:chk_ratings_not_self,assessor_student_id <> assessored_student_id" json:"assessored_student_id"`
	OverallRating       int       `gorm:"column:overall_rating;not null" json:"overall_rating"`
	Advantages          string    `gorm:"column:advantages;type:text" json:"advantages"`
	Disadvantages       string    `gorm:"column:disadvantages;type:text" json:"disadvantages"`
	RateDate            time.Time `gorm:"column:rate_date;not null" json:"rate_date"`

	Assessor *Student `gorm:"foreignKey:AssessorStudentID;references:StudentID" json:"assessor,omitempty"`
	Assessed *Student `gorm:"foreignKey:AssessoredStudentID;references:StudentID" json:"assessed,omitempty"`
}

func (Rating) TableName() string { return "team_members_ratings" }

// ErrSelfRating is returned when a student tries to rate themselves.
var ErrSelfRating = apperrors.NewInvalidArgument("SELF_RATING", "Students cannot rate themselves")

// ErrRatingOutOfRange is returned when the score falls outside the configured bounds.
var ErrRatingOutOfRange = apperrors.NewInvalidArgument("RATING_OUT_OF_RANGE", "Rating is out of range")

// NewRating validates a rating against the [minScore, maxScore] bounds.
func NewRating(assessorID, assessedID int64, score, minScore, maxScore int, advantages, disadvantages string) (*Rating, error) {
	if assessorID <= 0 || assessedID <= 0 {
		return nil, apperrors.NewBadRequest("assessor and assessed are required")
	}
	if assessorID == assessedID {
		return nil, ErrSelfRating
	}
	if !validator.IsValidRating(score, minScore, maxScore) {
		return nil, ErrRatingOutOfRange
	}

	advantages = strings.TrimSpace(advantages)
	disadvantages = strings.TrimSpace(disadvantages)
	if utf8.RuneCountInString(advantages) > validator.ReviewTextMax || utf8.RuneCountInString(disadvantages) > validator.ReviewTextMax {
		return nil, apperrors.NewBadRequest("review text is too long")
	}

	return &Rating{
		AssessorStudentID:   assessorID,
		AssessoredStudentID: assessedID,
		OverallRating:       score,
		Advantages:          advantages,
		Disadvantages:       disadvantages,
		RateDate:            time.Now().UTC(),
	}, nil
}
