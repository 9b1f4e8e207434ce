package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/internal/database/testutil"
	"github.com/studhelper/studhelper/internal/models"
)

var testNames = []string{"Анна Смирнова", "Борис Кузнецов", "Вера Попова", "Глеб Соколов", "Дарья Лебедева", "Егор Козлов"}

func newTestDomain(t *testing.T, opts ...TeamOption) *Domain {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	domain, err := NewDomain(db, DefaultDomainConfig(), opts...)
	require.NoError(t, err)
	return domain
}

// sequenceGenerator hands out codes in order and then fails.
func sequenceGenerator(codes ...string) CodeGenerator {
	next := 0
	return func() (string, error) {
		if next >= len(codes) {
			return "", fmt.Errorf("generator exhausted after %d codes", len(codes))
		}
		code := codes[next]
		next++
		return code, nil
	}
}

func mustStudent(t *testing.T, d *Domain, externalID int64) *models.Student {
	t.Helper()

	name := testNames[int(externalID)%len(testNames)]
	student, err := d.Students.RegisterIfAbsent(context.Background(), externalID, name, "0")
	require.NoError(t, err)
	return student
}

// mustTeam builds a team whose admin is the first student and whose other members join as developers.
func mustTeam(t *testing.T, d *Domain, admin *models.Student, members ...*models.Student) *models.Team {
	t.Helper()
	ctx := context.Background()

	team, err := d.Teams.CreateTeam(ctx, fmt.Sprintf("Team %d", admin.StudentID), "Widget", admin.StudentID)
	require.NoError(t, err)
	for _, member := range members {
		_, err := d.Teams.JoinTeam(ctx, team.InviteCode, member.StudentID, models.RoleDeveloper)
		require.NoError(t, err)
	}
	return team
}
