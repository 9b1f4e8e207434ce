package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeamStatsIncludesEveryMember(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()
	admin := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)
	c := mustStudent(t, d, 3)
	team := mustTeam(t, d, admin, b, c)

	_, _, err := d.Reports.Upsert(ctx, b.StudentID, 1, "sprint one")
	require.NoError(t, err)
	_, _, err = d.Reports.Upsert(ctx, b.StudentID, 2, "sprint two")
	require.NoError(t, err)
	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: admin.StudentID, AssessedID: b.StudentID, Score: 8})
	require.NoError(t, err)
	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: c.StudentID, AssessedID: b.StudentID, Score: 6})
	require.NoError(t, err)

	stats, err := d.Stats.TeamStats(ctx, team.TeamID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	require.Equal(t, admin.StudentID, stats[0].StudentID)
	require.True(t, stats[0].IsAdmin)
	require.EqualValues(t, 1, stats[0].RatingsGiven)

	var member *MemberStats
	for i := range stats {
		if stats[i].StudentID == b.StudentID {
			member = &stats[i]
		}
	}
	require.NotNil(t, member)
	require.EqualValues(t, 2, member.ReportCount)
	require.EqualValues(t, 2, member.RatingsReceived)
	require.InDelta(t, 7.0, member.AvgReceivedScore, 0.001)
}

func TestMemberStatsRequiresAdmin(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()
	admin := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)
	team := mustTeam(t, d, admin, b)

	_, err := d.Stats.MemberStats(ctx, team.TeamID, admin.StudentID, b.StudentID)
	require.ErrorIs(t, err, ErrPermissionDenied)
	_, err = d.Stats.MemberStats(ctx, team.TeamID, b.StudentID, b.StudentID)
	require.ErrorIs(t, err, ErrPermissionDenied)

	stats, err := d.Stats.MemberStats(ctx, team.TeamID, b.StudentID, admin.StudentID)
	require.NoError(t, err)
	require.Equal(t, b.Name, stats.Name)

	_, err = d.Stats.MemberStats(ctx, team.TeamID, 9999, admin.StudentID)
	require.ErrorIs(t, err, ErrTeamMemberNotFound)
}
