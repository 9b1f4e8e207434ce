package models

import (
	"strings"

	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/validator"
)

// Team is a student project team. The admin is always one of its members.
type Team struct {
	TeamID         int64  `gorm:"column:team_id;primaryKey;autoIncrement" json:"team_id"`
	TeamName       string `gorm:"column:team_name;size:64;not null" json:"team_name"`
	ProductName    string `gorm:"column:product_name;size:100;not null" json:"product_name"`
	InviteCode     string `gorm:"column:invite_code;size:16;uniqueIndex;not null" json:"invite_code"`
	AdminStudentID int64  `gorm:"column:admin_student_id;not null;index" json:"admin_student_id"`

	Admin   *Student         `gorm:"foreignKey:AdminStudentID;references:StudentID;constraint:OnDelete:RESTRICT" json:"admin,omitempty"`
	Members []TeamMembership `gorm:"foreignKey:TeamID;references:TeamID;constraint:OnDelete:CASCADE" json:"members,omitempty"`

	Timestamps
}

func (Team) TableName() string { return "teams" }

// NewTeam validates team metadata. The invite code is assigned when the team is persisted.
func NewTeam(name, product string, adminStudentID int64) (*Team, error) {
	name = strings.TrimSpace(name)
	product = strings.TrimSpace(product)

	if !validator.IsValidTeamName(name) {
		return nil, apperrors.NewBadRequest("invalid team name")
	}
	if !validator.IsValidProductName(product) {
		return nil, apperrors.NewBadRequest("invalid product name")
	}
	if adminStudentID <= 0 {
		return nil, apperrors.NewBadRequest("team admin is required")
	}

	return &Team{
		TeamName:       name,
		ProductName:    product,
		AdminStudentID: adminStudentID,
	}, nil
}
