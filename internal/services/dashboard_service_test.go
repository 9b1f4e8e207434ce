package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDashboardQueries(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()

	admin := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)
	other := mustStudent(t, d, 3)
	team := mustTeam(t, d, admin, b)
	mustTeam(t, d, other)

	for _, id := range []int64{admin.StudentID, b.StudentID} {
		_, _, err := d.Reports.Upsert(ctx, id, 1, "sprint one report text")
		require.NoError(t, err)
	}
	_, _, err := d.Reports.Upsert(ctx, b.StudentID, 2, "sprint two report")
	require.NoError(t, err)
	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: admin.StudentID, AssessedID: b.StudentID, Score: 9})
	require.NoError(t, err)

	teams, err := d.Dashboard.Teams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	summary, err := d.Dashboard.Team(ctx, team.TeamID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.MemberCount)
	require.EqualValues(t, 3, summary.ReportCount)
	require.Equal(t, admin.Name, summary.AdminName)

	_, err = d.Dashboard.Team(ctx, 9999)
	require.ErrorIs(t, err, ErrTeamNotFound)

	rows, total, err := d.Dashboard.Reports(ctx, ReportFilter{Sprint: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)

	rows, total, err = d.Dashboard.Reports(ctx, ReportFilter{TeamID: team.TeamID, Student: b.Name, PerPage: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 1)
	require.Equal(t, b.StudentID, rows[0].StudentID)
	require.Positive(t, rows[0].ReportLength)

	stats, err := d.Dashboard.ReportStatistics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalReports)
	require.Equal(t, 2, stats.LastSprint)
	require.EqualValues(t, 1, stats.CurrentSprintReports)
	require.Positive(t, stats.AvgReportLength)
	require.EqualValues(t, 0, stats.TeamsWithFullReports)

	counts, err := d.Dashboard.Counts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, counts.Students)
	require.EqualValues(t, 2, counts.Teams)
	require.EqualValues(t, 3, counts.Reports)
	require.EqualValues(t, 1, counts.Ratings)
}

func TestReportStatisticsEmpty(t *testing.T) {
	d := newTestDomain(t)

	stats, err := d.Dashboard.ReportStatistics(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.TotalReports)
	require.Zero(t, stats.LastSprint)
}
