package models

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/validator"
)

// SprintReport is a student's status report for one sprint. Resubmission overwrites text and date.
type SprintReport struct {
	ReportID   int64     `gorm:"column:report_id;primaryKey;autoIncrement" json:"report_id"`
	StudentID  int64     `gorm:"column:student_id;not null;uniqueIndex:idx_sprint_reports_student_sprint" json:"student_id"`
	SprintNum  int       `gorm:"column:sprint_num;not null;uniqueIndex:idx_sprint_reports_student_sprint" json:"sprint_num"`
	ReportText string    `gorm:"column:report_text;type:text;not null" json:"report_text"`
	ReportDate time.Time `gorm:"column:report_date;not null;index" json:"report_date"`

	Student *Student `gorm:"foreignKey:StudentID;references:StudentID;-:migration" json:"student,omitempty"`
}

func (SprintReport) TableName() string { return "sprint_reports" }

// NewSprintReport checks the sprint number and that the body is present and not oversized.
// Minimum length is a dialog concern.
func NewSprintReport(studentID int64, sprintNum int, text string) (*SprintReport, error) {
	text = strings.TrimSpace(text)
	switch {
	case studentID <= 0:
		return nil, apperrors.NewBadRequest("student is required")
	case sprintNum < 1:
		return nil, apperrors.NewBadRequest("invalid sprint number")
	case text == "":
		return nil, apperrors.NewBadRequest("report text is required")
	case utf8.RuneCountInString(text) > validator.ReportTextMax:
		return nil, apperrors.NewBadRequest("report text is too long")
	}
	return &SprintReport{
		StudentID:  studentID,
		SprintNum:  sprintNum,
		ReportText: text,
		ReportDate: time.Now().UTC(),
	}, nil
}
