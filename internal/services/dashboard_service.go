package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/models"
)

const (
	defaultReportsPerPage = 50
	maxReportsPerPage     = 200
)

// TeamSummary is a team with its per-member activity.
type TeamSummary struct {
	models.Team
	AdminName   string        `json:"admin_name"`
	MemberCount int           `json:"member_count"`
	ReportCount int64         `json:"report_count"`
	MemberStats []MemberStats `json:"member_stats"`
}

// ReportFilter narrows the report listing. Zero values disable a filter.
type ReportFilter struct {
	TeamID  int64
	Team    string
	Student string
	Sprint  int
	Page    int
	PerPage int
}

// Pagination returns the effective page and page size.
func (f ReportFilter) Pagination() (page, perPage int) {
	perPage = f.PerPage
	switch {
	case perPage <= 0:
		perPage = defaultReportsPerPage
	case perPage > maxReportsPerPage:
		perPage = maxReportsPerPage
	}
	page = f.Page
	if page < 1 {
		page = 1
	}
	return page, perPage
}

// ReportView is one row of the dashboard report listing.
type ReportView struct {
	StudentID    int64     `json:"student_id"`
	StudentName  string    `json:"student_name"`
	GroupNum     *string   `json:"group_num"`
	TeamID       int64     `json:"team_id"`
	TeamName     string    `json:"team_name"`
	ProductName  string    `json:"product_name"`
	Role         string    `json:"role"`
	IsAdmin      bool      `json:"is_admin"`
	SprintNum    int       `json:"sprint_num"`
	ReportDate   time.Time `json:"report_date"`
	ReportText   string    `json:"report_text"`
	ReportLength int       `json:"report_length" gorm:"-"`
}

// ReportStatistics summarises report activity across all teams.
type ReportStatistics struct {
	TotalReports         int64 `json:"total_reports"`
	LastSprint           int   `json:"last_sprint"`
	CurrentSprintReports int64 `json:"current_sprint_reports"`
	AvgReportLength      int   `json:"avg_report_length"`
	TeamsWithFullReports int64 `json:"teams_with_full_reports"`
}

// Counts holds entity totals.
type Counts struct {
	Students int64 `json:"students"`
	Teams    int64 `json:"teams"`
	Reports  int64 `json:"reports"`
	Ratings  int64 `json:"ratings"`
}

// DashboardService answers the read-only reporting queries. It never mutates data.
type DashboardService struct {
	db    *gorm.DB
	stats *StatsService
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(db *gorm.DB, stats *StatsService) (*DashboardService, error) {
	if db == nil {
		return nil, errors.New("dashboard service: db is required")
	}
	if stats == nil {
		return nil, errors.New("dashboard service: stats service is required")
	}
	return &DashboardService{db: db, stats: stats}, nil
}

// Teams lists every team ordered by name with member activity.
func (s *DashboardService) Teams(ctx context.Context) ([]TeamSummary, error) {
	ctx = ensureContext(ctx)

	var teams []models.Team
	if err := s.db.WithContext(ctx).Preload("Admin").Order("team_name").Find(&teams).Error; err != nil {
		return nil, storeFailure(fmt.Errorf("dashboard service: list teams: %w", err), "list teams")
	}

	out := make([]TeamSummary, 0, len(teams))
	for _, team := range teams {
		summary, err := s.summarise(ctx, team)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

// Team returns a single team summary.
func (s *DashboardService) Team(ctx context.Context, teamID int64) (*TeamSummary, error) {
	ctx = ensureContext(ctx)

	team, err := findTeamByID(s.db.WithContext(ctx).Preload("Admin"), teamID)
	if err != nil {
		return nil, err
	}
	return s.summarise(ctx, *team)
}

func (s *DashboardService) summarise(ctx context.Context, team models.Team) (*TeamSummary, error) {
	stats, err := s.stats.TeamStats(ctx, team.TeamID)
	if err != nil {
		return nil, err
	}
	summary := &TeamSummary{
		Team:        team,
		MemberCount: len(stats),
		MemberStats: stats,
	}
	if team.Admin != nil {
		summary.AdminName = team.Admin.Name
	}
	for _, member := range stats {
		summary.ReportCount += member.ReportCount
	}
	return summary, nil
}

// Reports lists reports matching filter, newest first, and the unpaginated total.
func (s *DashboardService) Reports(ctx context.Context, filter ReportFilter) ([]ReportView, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Table("sprint_reports").
		Joins("JOIN students ON students.student_id = sprint_reports.student_id").
		Joins("JOIN team_members ON team_members.student_id = students.student_id").
		Joins("JOIN teams ON teams.team_id = team_members.team_id")

	if filter.TeamID > 0 {
		query = query.Where("teams.team_id = ?", filter.TeamID)
	}
	if team := strings.TrimSpace(filter.Team); team != "" {
		query = query.Where("teams.team_name LIKE ?", "%"+team+"%")
	}
	if student := strings.TrimSpace(filter.Student); student != "" {
		query = query.Where("students.name LIKE ?", "%"+student+"%")
	}
	if filter.Sprint > 0 {
		query = query.Where("sprint_reports.sprint_num = ?", filter.Sprint)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, storeFailure(fmt.Errorf("dashboard service: count reports: %w", err), "list reports")
	}

	page, perPage := filter.Pagination()

	var rows []ReportView
	err := query.Select(`sprint_reports.student_id AS student_id,
		students.name AS student_name,
		students.group_num AS group_num,
		teams.team_id AS team_id,
		teams.team_name AS team_name,
		teams.product_name AS product_name,
		team_members.role AS role,
		CASE WHEN teams.admin_student_id = students.student_id THEN 1 ELSE 0 END AS is_admin,
		sprint_reports.sprint_num AS sprint_num,
		sprint_reports.report_date AS report_date,
		sprint_reports.report_text AS report_text`).
		Order("sprint_reports.report_date DESC").
		Order("teams.team_name").
		Order("students.name").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, storeFailure(fmt.Errorf("dashboard service: list reports: %w", err), "list reports")
	}
	for i := range rows {
		rows[i].ReportLength = utf8.RuneCountInString(rows[i].ReportText)
	}
	return rows, total, nil
}

// ReportStatistics summarises report volume and completeness for the latest sprint.
func (s *DashboardService) ReportStatistics(ctx context.Context) (*ReportStatistics, error) {
	db := s.db.WithContext(ensureContext(ctx))
	stats := &ReportStatistics{}

	if err := db.Model(&models.SprintReport{}).Count(&stats.TotalReports).Error; err != nil {
		return nil, storeFailure(err, "report statistics")
	}
	if stats.TotalReports == 0 {
		return stats, nil
	}

	var lastSprint sql.NullInt64
	if err := db.Model(&models.SprintReport{}).Select("MAX(sprint_num)").Row().Scan(&lastSprint); err != nil {
		return nil, storeFailure(err, "report statistics")
	}
	stats.LastSprint = int(lastSprint.Int64)

	if err := db.Model(&models.SprintReport{}).Where("sprint_num = ?", stats.LastSprint).Count(&stats.CurrentSprintReports).Error; err != nil {
		return nil, storeFailure(err, "report statistics")
	}

	var avgLength sql.NullFloat64
	if err := db.Model(&models.SprintReport{}).Select("AVG(LENGTH(report_text))").Row().Scan(&avgLength); err != nil {
		return nil, storeFailure(err, "report statistics")
	}
	stats.AvgReportLength = int(avgLength.Float64)

	err := db.Raw(`SELECT COUNT(*) FROM teams t
		WHERE NOT EXISTS (
			SELECT 1 FROM team_members tm
			LEFT JOIN sprint_reports sr ON tm.student_id = sr.student_id AND sr.sprint_num = ?
			WHERE tm.team_id = t.team_id AND sr.student_id IS NULL
		)`, stats.LastSprint).Scan(&stats.TeamsWithFullReports).Error
	if err != nil {
		return nil, storeFailure(err, "report statistics")
	}
	return stats, nil
}

// Counts returns entity totals.
func (s *DashboardService) Counts(ctx context.Context) (*Counts, error) {
	db := s.db.WithContext(ensureContext(ctx))
	counts := &Counts{}

	for _, target := range []struct {
		model any
		dest  *int64
	}{
		{&models.Student{}, &counts.Students},
		{&models.Team{}, &counts.Teams},
		{&models.SprintReport{}, &counts.Reports},
		{&models.Rating{}, &counts.Ratings},
	} {
		if err := db.Model(target.model).Count(target.dest).Error; err != nil {
			return nil, storeFailure(fmt.Errorf("dashboard service: counts: %w", err), "count entities")
		}
	}
	return counts, nil
}
