package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/models"
)

// MemberStats aggregates a member's activity.
type MemberStats struct {
	StudentID        int64   `json:"student_id"`
	Name             string  `json:"name"`
	Group            string  `json:"group,omitempty"`
	Role             string  `json:"role"`
	IsAdmin          bool    `json:"is_admin"`
	ReportCount      int64   `json:"report_count"`
	RatingsGiven     int64   `json:"ratings_given"`
	RatingsReceived  int64   `json:"ratings_received"`
	AvgReceivedScore float64 `json:"avg_received_score"`
}

type studentAggregate struct {
	StudentID int64
	Total     int64
	Average   float64
}

// StatsService computes read-only team aggregates.
type StatsService struct {
	db    *gorm.DB
	teams *TeamService
}

// NewStatsService constructs a StatsService instance.
func NewStatsService(db *gorm.DB, teams *TeamService) (*StatsService, error) {
	if db == nil {
		return nil, errors.New("stats service: db is required")
	}
	if teams == nil {
		return nil, errors.New("stats service: team service is required")
	}
	return &StatsService{db: db, teams: teams}, nil
}

// TeamStats returns one entry per member, admin first.
func (s *StatsService) TeamStats(ctx context.Context, teamID int64) ([]MemberStats, error) {
	ctx = ensureContext(ctx)

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []MemberStats{}, nil
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.StudentID)
	}

	db := s.db.WithContext(ctx)
	reports, err := aggregate(db.Model(&models.SprintReport{}).
		Select("student_id AS student_id, COUNT(*) AS total, 0 AS average").
		Where("student_id IN ?", ids).
		Group("student_id"))
	if err != nil {
		return nil, err
	}
	given, err := aggregate(db.Model(&models.Rating{}).
		Select("assessor_student_id AS student_id, COUNT(*) AS total, 0 AS average").
		Where("assessor_student_id IN ?", ids).
		Group("assessor_student_id"))
	if err != nil {
		return nil, err
	}
	received, err := aggregate(db.Model(&models.Rating{}).
		Select("assessored_student_id AS student_id, COUNT(*) AS total, AVG(overall_rating) AS average").
		Where("assessored_student_id IN ?", ids).
		Group("assessored_student_id"))
	if err != nil {
		return nil, err
	}

	out := make([]MemberStats, 0, len(members))
	for _, member := range members {
		stats := MemberStats{
			StudentID:        member.StudentID,
			Role:             member.Role,
			IsAdmin:          member.StudentID == team.AdminStudentID,
			ReportCount:      reports[member.StudentID].Total,
			RatingsGiven:     given[member.StudentID].Total,
			RatingsReceived:  received[member.StudentID].Total,
			AvgReceivedScore: received[member.StudentID].Average,
		}
		if member.Student != nil {
			stats.Name = member.Student.Name
			stats.Group = member.Student.Group()
		}
		out = append(out, stats)
	}
	return out, nil
}

// MemberStats returns a single member's aggregate. Only the team admin may ask.
func (s *StatsService) MemberStats(ctx context.Context, teamID, studentID, requestingStudentID int64) (*MemberStats, error) {
	ctx = ensureContext(ctx)

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.AdminStudentID != requestingStudentID {
		return nil, ErrPermissionDenied
	}

	all, err := s.TeamStats(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].StudentID == studentID {
			return &all[i], nil
		}
	}
	return nil, ErrTeamMemberNotFound
}

func aggregate(query *gorm.DB) (map[int64]studentAggregate, error) {
	var rows []studentAggregate
	if err := query.Scan(&rows).Error; err != nil {
		return nil, storeFailure(fmt.Errorf("stats service: aggregate: %w", err), "compute statistics")
	}
	out := make(map[int64]studentAggregate, len(rows))
	for _, row := range rows {
		out[row.StudentID] = row
	}
	return out, nil
}
