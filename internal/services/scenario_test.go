package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/internal/models"
)

func TestTeamLifecycleScenario(t *testing.T) {
	d := newTestDomain(t, WithInviteCodeGenerator(sequenceGenerator("K7XQ4T9P")))
	ctx := context.Background()

	team, founder, err := d.Teams.RegisterTeam(ctx, RegisterTeamInput{
		ExternalID:  100,
		StudentName: "Иван Иванов",
		Group:       "0",
		TeamName:    "Alpha",
		ProductName: "Widget",
	})
	require.NoError(t, err)
	require.Equal(t, "K7XQ4T9P", team.InviteCode)

	_, _, err = d.Teams.JoinTeamAsNewcomer(ctx, JoinTeamInput{
		ExternalID:  200,
		StudentName: "Пётр Петров",
		Group:       "ПИ-21",
		InviteCode:  "K7XQ4T9P",
		Role:        models.RoleDeveloper,
	})
	require.NoError(t, err)

	members, err := d.Teams.ListMembers(ctx, team.TeamID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, _, err = d.Reports.Upsert(ctx, founder.StudentID, 1, "did X")
	require.NoError(t, err)
	reports, err := d.Reports.ListByStudent(ctx, founder.StudentID)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	_, _, err = d.Reports.Upsert(ctx, founder.StudentID, 1, "did X and Y")
	require.NoError(t, err)
	reports, err = d.Reports.ListByStudent(ctx, founder.StudentID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "did X and Y", reports[0].ReportText)
}
