package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/models"
	apperrors "github.com/studhelper/studhelper/pkg/errors"
)

var (
	// ErrStudentNotFound indicates no student matches the lookup.
	ErrStudentNotFound = apperrors.New("STUDENT_NOT_FOUND", "Student not found", http.StatusNotFound)
	// ErrTeamNotFound indicates the invite code or team id does not resolve to a team.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrTeamMemberNotFound indicates the requested membership does not exist.
	ErrTeamMemberNotFound = apperrors.New("TEAM_MEMBER_NOT_FOUND", "Student is not a member of the team", http.StatusNotFound)
	// ErrNotInTeam indicates the student has no team yet.
	ErrNotInTeam = apperrors.New("NOT_IN_TEAM", "Student is not in a team", http.StatusNotFound)
	// ErrReportNotFound indicates no report exists for the student and sprint.
	ErrReportNotFound = apperrors.New("REPORT_NOT_FOUND", "Report not found", http.StatusNotFound)

	// ErrPermissionDenied is returned when a non-admin attempts an admin action.
	ErrPermissionDenied = apperrors.ErrPermissionDenied
	// ErrAdminSelfRemoval prevents the admin from removing their own membership.
	ErrAdminSelfRemoval = apperrors.New("ADMIN_SELF_REMOVAL", "The team admin cannot be removed", http.StatusForbidden)

	// ErrAlreadyInTeam enforces the one-team-per-student policy.
	ErrAlreadyInTeam = apperrors.New("ALREADY_IN_TEAM", "Student already belongs to another team", http.StatusConflict)
	// ErrInviteCodeExhausted is returned when no free invite code could be generated.
	ErrInviteCodeExhausted = apperrors.New("INVITE_CODE_EXHAUSTED", "Could not allocate an invite code", http.StatusServiceUnavailable)

	// ErrInvalidSprint rejects sprint numbers outside 1..max.
	ErrInvalidSprint = apperrors.NewInvalidArgument("INVALID_SPRINT", "Sprint number is out of range")
	// ErrSelfRating rejects ratings where assessor and assessed are the same student.
	ErrSelfRating = models.ErrSelfRating
	// ErrRatingOutOfRange rejects scores outside the configured bounds.
	ErrRatingOutOfRange = models.ErrRatingOutOfRange
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}

// storeFailure wraps an unexpected persistence error, leaving domain errors untouched.
func storeFailure(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(err, message)
}
