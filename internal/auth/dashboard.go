package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/studhelper/studhelper/pkg/crypto"
	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/metrics"
)

const (
	// DashboardSubject is the subject of every dashboard token; there is a single shared login.
	DashboardSubject = "dashboard"
	// ScopeDashboardRead grants the read-only dashboard endpoints.
	ScopeDashboardRead = "dashboard:read"
)

// ErrDashboardDisabled is returned when no dashboard password hash is configured.
var ErrDashboardDisabled = apperrors.New("DASHBOARD_DISABLED", "Dashboard login is not configured", http.StatusServiceUnavailable)

// DashboardAuthenticator exchanges the shared dashboard password for a token.
type DashboardAuthenticator struct {
	passwordHash string
	tokens       *JWTService
}

// NewDashboardAuthenticator builds an authenticator. An empty hash disables logins.
func NewDashboardAuthenticator(passwordHash string, tokens *JWTService) *DashboardAuthenticator {
	return &DashboardAuthenticator{passwordHash: strings.TrimSpace(passwordHash), tokens: tokens}
}

// Login verifies password against the bcrypt hash and issues a read-only token.
func (a *DashboardAuthenticator) Login(password string) (string, time.Time, error) {
	if a == nil || a.passwordHash == "" || a.tokens == nil {
		return "", time.Time{}, ErrDashboardDisabled
	}
	if !crypto.VerifyPassword(a.passwordHash, password) {
		metrics.DashboardLogins.WithLabelValues("failure").Inc()
		return "", time.Time{}, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := a.tokens.Issue(DashboardSubject, ScopeDashboardRead)
	if err != nil {
		metrics.DashboardLogins.WithLabelValues("failure").Inc()
		return "", time.Time{}, apperrors.ErrInternalServer.WithInternal(err)
	}
	metrics.DashboardLogins.WithLabelValues("success").Inc()
	return token, expiresAt, nil
}
