package models

import (
	"strings"
	"time"

	apperrors "github.com/studhelper/studhelper/pkg/errors"
)

// Team roles offered when joining.
const (
	RoleProductOwner = "Product owner"
	RoleScrumMaster  = "Scrum Master"
	RoleDeveloper    = "Разработчик"
	RoleMember       = "Участник команды"

	// RoleAdmin is assigned to the student who registers the team.
	RoleAdmin = RoleScrumMaster
)

// Roles lists the selectable roles in display order.
var Roles = []string{RoleProductOwner, RoleScrumMaster, RoleDeveloper, RoleMember}

// IsKnownRole reports whether role is one of Roles.
func IsKnownRole(role string) bool {
	for _, candidate := range Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// TeamMembership links a student to a team. The unique student index limits a student to one team.
type TeamMembership struct {
	TeamID    int64     `gorm:"column:team_id;primaryKey;autoIncrement:false" json:"team_id"`
	StudentID int64     `gorm:"column:student_id;primaryKey;autoIncrement:false;uniqueIndex:idx_team_members_student" json:"student_id"`
	Role      string    `gorm:"column:role;size:64;not null" json:"role"`
	JoinedAt  time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`

	Student *Student `gorm:"foreignKey:StudentID;references:StudentID;-:migration" json:"student,omitempty"`
}

func (TeamMembership) TableName() string { return "team_members" }

// NewTeamMembership validates a (team, student, role) triple.
func NewTeamMembership(teamID, studentID int64, role string) (*TeamMembership, error) {
	role = strings.TrimSpace(role)
	if teamID <= 0 || studentID <= 0 {
		return nil, apperrors.NewBadRequest("team and student are required")
	}
	if !IsKnownRole(role) {
		return nil, apperrors.NewBadRequest("unknown team role")
	}
	return &TeamMembership{TeamID: teamID, StudentID: studentID, Role: role}, nil
}
