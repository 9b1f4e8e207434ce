package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/database"
	"github.com/studhelper/studhelper/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills in secrets the operator did not configure. The dashboard signing key is
// persisted in system_settings when a database is available so issued tokens survive restarts.
// The returned map names the generated keys so callers can log the event without exposing values.
func ApplyRuntimeDefaults(ctx context.Context, cfg *Config, db *gorm.DB) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Dashboard.JWTSecret) == "" {
		generate := func() (string, error) {
			generated["dashboard.jwt_secret"] = true
			return crypto.GenerateToken(jwtSecretBytes)
		}

		var (
			secret string
			err    error
		)
		if db != nil {
			secret, err = database.EnsureSystemSetting(ctx, db, database.DashboardJWTSecretSetting, generate)
		} else {
			secret, err = generate()
		}
		if err != nil {
			return nil, fmt.Errorf("generate dashboard jwt secret: %w", err)
		}
		cfg.Dashboard.JWTSecret = secret
	}

	return generated, nil
}
