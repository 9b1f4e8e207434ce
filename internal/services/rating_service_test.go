package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/internal/models"
	apperrors "github.com/studhelper/studhelper/pkg/errors"
)

func TestRatingUpsertKeepsOneRowPerPair(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()
	a := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)
	mustTeam(t, d, a, b)

	_, err := d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: b.StudentID, Score: 7, Advantages: "reliable", Disadvantages: "quiet"})
	require.NoError(t, err)

	rating, err := d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: b.StudentID, Score: 9, Advantages: "very reliable", Disadvantages: "none"})
	require.NoError(t, err)
	require.Equal(t, 9, rating.OverallRating)

	received, err := d.Ratings.ReceivedBy(ctx, b.StudentID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, 9, received[0].OverallRating)
	require.Equal(t, "very reliable", received[0].Advantages)
	require.NotNil(t, received[0].Assessor)
	require.Equal(t, a.Name, received[0].Assessor.Name)

	given, err := d.Ratings.GivenBy(ctx, a.StudentID)
	require.NoError(t, err)
	require.Len(t, given, 1)
	require.NotNil(t, given[0].Assessed)
}

func TestRatingRejectsSelfAndOutOfRange(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()
	a := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)

	_, err := d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: a.StudentID, Score: 5})
	require.ErrorIs(t, err, ErrSelfRating)
	require.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	minScore, maxScore := d.Ratings.Bounds()
	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: b.StudentID, Score: maxScore + 1})
	require.ErrorIs(t, err, ErrRatingOutOfRange)
	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: b.StudentID, Score: minScore - 1})
	require.ErrorIs(t, err, ErrRatingOutOfRange)

	received, err := d.Ratings.ReceivedBy(ctx, a.StudentID)
	require.NoError(t, err)
	require.Empty(t, received)
}

func TestTeammatesNotYetRatedShrinks(t *testing.T) {
	d := newTestDomain(t)
	ctx := context.Background()
	a := mustStudent(t, d, 1)
	b := mustStudent(t, d, 2)
	c := mustStudent(t, d, 3)
	dd := mustStudent(t, d, 4)
	mustTeam(t, d, a, b, c, dd)

	ids := func(students []models.Student) []int64 {
		out := make([]int64, 0, len(students))
		for _, s := range students {
			out = append(out, s.StudentID)
		}
		return out
	}

	pending, err := d.Ratings.TeammatesNotYetRated(ctx, a.StudentID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{b.StudentID, c.StudentID, dd.StudentID}, ids(pending))

	_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: b.StudentID, Score: 8})
	require.NoError(t, err)

	pending, err = d.Ratings.TeammatesNotYetRated(ctx, a.StudentID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{c.StudentID, dd.StudentID}, ids(pending))
	require.NotContains(t, ids(pending), a.StudentID)

	for _, target := range []int64{c.StudentID, dd.StudentID} {
		_, err = d.Ratings.Upsert(ctx, UpsertRatingInput{AssessorID: a.StudentID, AssessedID: target, Score: 6})
		require.NoError(t, err)
	}
	pending, err = d.Ratings.TeammatesNotYetRated(ctx, a.StudentID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestTeammatesNotYetRatedWithoutTeam(t *testing.T) {
	d := newTestDomain(t)

	pending, err := d.Ratings.TeammatesNotYetRated(context.Background(), mustStudent(t, d, 1).StudentID)
	require.NoError(t, err)
	require.Empty(t, pending)
}
