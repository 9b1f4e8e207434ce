package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/pkg/logger"
	"github.com/studhelper/studhelper/pkg/metrics"
)

var errInviteCodeTaken = errors.New("team service: invite code taken")

// TeamOption customises TeamService behaviour.
type TeamOption func(*TeamService)

// WithInviteCodeGenerator overrides the random invite code source.
func WithInviteCodeGenerator(generator CodeGenerator) TeamOption {
	return func(s *TeamService) {
		if generator != nil {
			s.generate = generator
		}
	}
}

// WithInviteAttempts bounds how many codes are tried before giving up.
func WithInviteAttempts(attempts int) TeamOption {
	return func(s *TeamService) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// RegisterTeamInput carries everything collected by the team registration dialog.
type RegisterTeamInput struct {
	ExternalID  int64
	StudentName string
	Group       string
	TeamName    string
	ProductName string
}

// JoinTeamInput carries a newcomer's registration plus the team they join.
type JoinTeamInput struct {
	ExternalID  int64
	StudentName string
	Group       string
	InviteCode  string
	Role        string
}

// TeamService handles team lifecycle and membership management.
type TeamService struct {
	db       *gorm.DB
	students *StudentService
	generate CodeGenerator
	attempts int
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, students *StudentService, opts ...TeamOption) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	if students == nil {
		return nil, errors.New("team service: student service is required")
	}
	svc := &TeamService{
		db:       db,
		students: students,
		generate: RandomInviteCode,
		attempts: defaultInviteAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateTeam creates a team administered by adminStudentID together with the admin's membership.
func (s *TeamService) CreateTeam(ctx context.Context, name, product string, adminStudentID int64) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.withInviteRetry(ctx, func(tx *gorm.DB, code string) (*models.Team, error) {
		return s.createTeam(tx, name, product, adminStudentID, code)
	})
	metrics.ObserveOperation("team.create", err)
	return team, err
}

// RegisterTeam registers the student if needed and creates their team in one transaction.
func (s *TeamService) RegisterTeam(ctx context.Context, input RegisterTeamInput) (*models.Team, *models.Student, error) {
	ctx = ensureContext(ctx)

	var admin *models.Student
	team, err := s.withInviteRetry(ctx, func(tx *gorm.DB, code string) (*models.Team, error) {
		student, err := s.students.registerIfAbsent(tx, input.ExternalID, input.StudentName, input.Group)
		if err != nil {
			return nil, err
		}
		admin = student
		return s.createTeam(tx, input.TeamName, input.ProductName, student.StudentID, code)
	})
	metrics.ObserveOperation("team.register", err)
	if err != nil {
		return nil, nil, err
	}
	return team, admin, nil
}

// withInviteRetry runs create in a fresh transaction per candidate code until one is accepted.
func (s *TeamService) withInviteRetry(ctx context.Context, create func(tx *gorm.DB, code string) (*models.Team, error)) (*models.Team, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, storeFailure(fmt.Errorf("team service: generate invite code: %w", err), "generate invite code")
		}
		code = NormaliseInviteCode(code)

		var team *models.Team
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			team, err = create(tx, code)
			return err
		})
		if errors.Is(err, errInviteCodeTaken) {
			logger.WithModule("services").Debug("invite code collision", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		return team, nil
	}
	return nil, ErrInviteCodeExhausted
}

func (s *TeamService) createTeam(tx *gorm.DB, name, product string, adminStudentID int64, code string) (*models.Team, error) {
	team, err := models.NewTeam(name, product, adminStudentID)
	if err != nil {
		return nil, err
	}

	if _, err := findStudentByID(tx, adminStudentID); err != nil {
		return nil, err
	}
	if _, err := findMembership(tx, adminStudentID); err == nil {
		return nil, ErrAlreadyInTeam
	} else if !errors.Is(err, ErrNotInTeam) {
		return nil, err
	}

	var taken int64
	if err := tx.Model(&models.Team{}).Where("invite_code = ?", code).Count(&taken).Error; err != nil {
		return nil, storeFailure(err, "check invite code")
	}
	if taken > 0 {
		return nil, errInviteCodeTaken
	}

	team.InviteCode = code
	if err := tx.Create(team).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, errInviteCodeTaken
		}
		return nil, storeFailure(fmt.Errorf("team service: create team: %w", err), "create team")
	}

	membership, err := models.NewTeamMembership(team.TeamID, adminStudentID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := tx.Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyInTeam
		}
		return nil, storeFailure(fmt.Errorf("team service: add admin membership: %w", err), "create team")
	}

	return team, nil
}

// JoinTeam adds studentID to the team identified by inviteCode. Re-joining the same team updates
// the role of an ordinary member; the admin is refused.
func (s *TeamService) JoinTeam(ctx context.Context, inviteCode string, studentID int64, role string) (*models.TeamMembership, error) {
	ctx = ensureContext(ctx)

	var membership *models.TeamMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		membership, err = s.joinTeam(tx, inviteCode, studentID, role)
		return err
	})
	metrics.ObserveOperation("team.join", err)
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// JoinTeamAsNewcomer registers the student and joins the team in one transaction.
func (s *TeamService) JoinTeamAsNewcomer(ctx context.Context, input JoinTeamInput) (*models.TeamMembership, *models.Student, error) {
	ctx = ensureContext(ctx)

	var (
		membership *models.TeamMembership
		student    *models.Student
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		student, err = s.students.registerIfAbsent(tx, input.ExternalID, input.StudentName, input.Group)
		if err != nil {
			return err
		}
		membership, err = s.joinTeam(tx, input.InviteCode, student.StudentID, input.Role)
		return err
	})
	metrics.ObserveOperation("team.join", err)
	if err != nil {
		return nil, nil, err
	}
	return membership, student, nil
}

func (s *TeamService) joinTeam(tx *gorm.DB, inviteCode string, studentID int64, role string) (*models.TeamMembership, error) {
	team, err := findTeamByInviteCode(tx, inviteCode)
	if err != nil {
		return nil, err
	}
	membership, err := models.NewTeamMembership(team.TeamID, studentID, role)
	if err != nil {
		return nil, err
	}
	if _, err := findStudentByID(tx, studentID); err != nil {
		return nil, err
	}

	current, err := findMembership(tx, studentID)
	switch {
	case err == nil && current.TeamID != team.TeamID:
		return nil, ErrAlreadyInTeam
	case err == nil && team.AdminStudentID == studentID:
		// The admin role is fixed by registration.
		return nil, ErrAlreadyInTeam
	case err != nil && !errors.Is(err, ErrNotInTeam):
		return nil, err
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyInTeam
		}
		return nil, storeFailure(fmt.Errorf("team service: upsert membership: %w", err), "join team")
	}

	return findMembership(tx, studentID)
}

// RemoveMember deletes studentID's membership. Only the team admin may do this, and never for themselves.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, studentID, requestingStudentID int64) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := findTeamByID(tx, teamID)
		if err != nil {
			return err
		}
		if team.AdminStudentID != requestingStudentID {
			return ErrPermissionDenied
		}
		if studentID == team.AdminStudentID {
			return ErrAdminSelfRemoval
		}

		result := tx.Where("team_id = ? AND student_id = ?", teamID, studentID).Delete(&models.TeamMembership{})
		if result.Error != nil {
			return storeFailure(fmt.Errorf("team service: remove member: %w", result.Error), "remove member")
		}
		if result.RowsAffected == 0 {
			return ErrTeamMemberNotFound
		}
		return nil
	})
	metrics.ObserveOperation("team.remove_member", err)
	return err
}

// GetByInviteCode resolves a team from its invite code.
func (s *TeamService) GetByInviteCode(ctx context.Context, code string) (*models.Team, error) {
	return findTeamByInviteCode(s.db.WithContext(ensureContext(ctx)), code)
}

// GetByID resolves a team by primary key with its admin preloaded.
func (s *TeamService) GetByID(ctx context.Context, teamID int64) (*models.Team, error) {
	return findTeamByID(s.db.WithContext(ensureContext(ctx)).Preload("Admin"), teamID)
}

// MembershipOf returns the student's team and membership row.
func (s *TeamService) MembershipOf(ctx context.Context, studentID int64) (*models.Team, *models.TeamMembership, error) {
	db := s.db.WithContext(ensureContext(ctx))

	membership, err := findMembership(db, studentID)
	if err != nil {
		return nil, nil, err
	}
	team, err := findTeamByID(db.Preload("Admin"), membership.TeamID)
	if err != nil {
		return nil, nil, err
	}
	return team, membership, nil
}

// ListMembers returns the team's memberships, admin first, then by name.
func (s *TeamService) ListMembers(ctx context.Context, teamID int64) ([]models.TeamMembership, error) {
	db := s.db.WithContext(ensureContext(ctx))

	team, err := findTeamByID(db, teamID)
	if err != nil {
		return nil, err
	}

	var members []models.TeamMembership
	err = db.Preload("Student").
		Joins("JOIN students ON students.student_id = team_members.student_id").
		Where("team_members.team_id = ?", teamID).
		Order("students.name").
		Find(&members).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("team service: list members: %w", err), "list members")
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].StudentID == team.AdminStudentID && members[j].StudentID != team.AdminStudentID
	})
	return members, nil
}

// Teammates returns the other members of the student's team ordered by name.
func (s *TeamService) Teammates(ctx context.Context, studentID int64) ([]models.Student, error) {
	db := s.db.WithContext(ensureContext(ctx))

	membership, err := findMembership(db, studentID)
	if err != nil {
		return nil, err
	}

	var students []models.Student
	err = teammatesQuery(db, membership.TeamID, studentID).Order("students.name").Find(&students).Error
	if err != nil {
		return nil, storeFailure(fmt.Errorf("team service: teammates: %w", err), "list teammates")
	}
	return students, nil
}

func teammatesQuery(db *gorm.DB, teamID, excludeStudentID int64) *gorm.DB {
	return db.Model(&models.Student{}).
		Joins("JOIN team_members ON team_members.student_id = students.student_id").
		Where("team_members.team_id = ? AND students.student_id <> ?", teamID, excludeStudentID)
}

func findTeamByInviteCode(tx *gorm.DB, code string) (*models.Team, error) {
	code = NormaliseInviteCode(code)
	if code == "" {
		return nil, ErrTeamNotFound
	}
	var team models.Team
	err := tx.Take(&team, "invite_code = ?", code).Error
	if isNotFound(err) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("team service: lookup invite code: %w", err), "load team")
	}
	return &team, nil
}

func findTeamByID(tx *gorm.DB, teamID int64) (*models.Team, error) {
	var team models.Team
	err := tx.Take(&team, "team_id = ?", teamID).Error
	if isNotFound(err) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("team service: get team: %w", err), "load team")
	}
	return &team, nil
}

func findMembership(tx *gorm.DB, studentID int64) (*models.TeamMembership, error) {
	var membership models.TeamMembership
	err := tx.Take(&membership, "student_id = ?", studentID).Error
	if isNotFound(err) {
		return nil, ErrNotInTeam
	}
	if err != nil {
		return nil, storeFailure(fmt.Errorf("team service: membership: %w", err), "load membership")
	}
	return &membership, nil
}
