package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/studhelper/studhelper/pkg/validator"
)

// DefaultMaxSprint is the number of sprints in a course when not configured.
const DefaultMaxSprint = 6

// DomainConfig carries the read-only business settings loaded at startup.
type DomainConfig struct {
	MinRating      int
	MaxRating      int
	MaxSprint      int
	ReviewsEnabled bool
}

// DefaultDomainConfig mirrors the stock course settings.
func DefaultDomainConfig() DomainConfig {
	return DomainConfig{
		MinRating:      validator.DefaultMinRating,
		MaxRating:      validator.DefaultMaxRating,
		MaxSprint:      DefaultMaxSprint,
		ReviewsEnabled: true,
	}
}

func (c DomainConfig) normalised() DomainConfig {
	def := DefaultDomainConfig()
	if c.MinRating == 0 && c.MaxRating == 0 {
		c.MinRating, c.MaxRating = def.MinRating, def.MaxRating
	}
	if c.MaxSprint <= 0 {
		c.MaxSprint = def.MaxSprint
	}
	return c
}

// Domain bundles the domain services around one store handle and one config.
type Domain struct {
	Config DomainConfig

	Students  *StudentService
	Teams     *TeamService
	Reports   *ReportService
	Ratings   *RatingService
	Stats     *StatsService
	Dashboard *DashboardService
}

// NewDomain wires every service against db.
func NewDomain(db *gorm.DB, cfg DomainConfig, teamOpts ...TeamOption) (*Domain, error) {
	if db == nil {
		return nil, errors.New("domain: db is required")
	}
	cfg = cfg.normalised()
	if cfg.MinRating > cfg.MaxRating {
		return nil, errors.New("domain: min rating exceeds max rating")
	}

	students, err := NewStudentService(db)
	if err != nil {
		return nil, err
	}
	teams, err := NewTeamService(db, students, teamOpts...)
	if err != nil {
		return nil, err
	}
	reports, err := NewReportService(db, cfg)
	if err != nil {
		return nil, err
	}
	ratings, err := NewRatingService(db, cfg)
	if err != nil {
		return nil, err
	}
	stats, err := NewStatsService(db, teams)
	if err != nil {
		return nil, err
	}
	dashboard, err := NewDashboardService(db, stats)
	if err != nil {
		return nil, err
	}

	return &Domain{
		Config:    cfg,
		Students:  students,
		Teams:     teams,
		Reports:   reports,
		Ratings:   ratings,
		Stats:     stats,
		Dashboard: dashboard,
	}, nil
}
