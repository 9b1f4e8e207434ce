package models

import (
	"strings"

	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/validator"
)

// Student is a chat user known to the system. Rows are created on first interaction and never deleted.
type Student struct {
	StudentID int64   `gorm:"column:student_id;primaryKey;autoIncrement" json:"student_id"`
	TgID      int64   `gorm:"column:tg_id;uniqueIndex;not null" json:"tg_id"`
	Name      string  `gorm:"column:name;size:64;not null" json:"name"`
	GroupNum  *string `gorm:"column:group_num;size:16" json:"group_num"`

	// Owned rows. The foreign keys live on the child tables.
	Memberships []TeamMembership `gorm:"foreignKey:StudentID;references:StudentID" json:"-"`
	Reports     []SprintReport   `gorm:"foreignKey:StudentID;references:StudentID" json:"-"`

	Timestamps
}

// TableName keeps the historical table name.
func (Student) TableName() string { return "students" }

// Group returns the group label or the empty string when the student has none.
func (s Student) Group() string {
	if s.GroupNum == nil {
		return ""
	}
	return *s.GroupNum
}

// NewStudent validates the registration fields. A group of "0" (or blank) means no group.
func NewStudent(tgID int64, name, group string) (*Student, error) {
	if tgID == 0 {
		return nil, apperrors.NewBadRequest("external id is required")
	}
	name = strings.TrimSpace(name)
	if !validator.IsValidFullName(name) {
		return nil, apperrors.NewBadRequest("invalid student name")
	}

	student := &Student{TgID: tgID, Name: name}

	group = strings.TrimSpace(group)
	if group != "" && group != validator.NoGroup {
		if !validator.IsValidGroupNumber(group) {
			return nil, apperrors.NewBadRequest("invalid group number")
		}
		student.GroupNum = &group
	}
	return student, nil
}
