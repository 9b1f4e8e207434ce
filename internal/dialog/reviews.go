package dialog

import (
	"context"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/validator"
)

func (m *Machine) enterReview(ctx context.Context, req request) (result, error) {
	if !m.domain.Config.ReviewsEnabled {
		return finish(PromptReviewsDisabled, nil), nil
	}
	student, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if team == nil {
		return finish(PromptNotInTeam, nil), nil
	}

	pending, err := m.domain.Ratings.TeammatesNotYetRated(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	if len(pending) == 0 {
		return finish(PromptAllRated, nil), nil
	}
	return restart(StepReviewTeammate, PromptAskTeammate, nil, map[string]any{"teammates": studentViews(pending)}), nil
}

// assessor resolves the rating author. A nil student means the dialog must end.
func (m *Machine) assessor(ctx context.Context, req request) (*models.Student, error) {
	return m.findStudent(ctx, req.event.UserID)
}

func handleReviewTeammate(ctx context.Context, m *Machine, req request) (result, error) {
	targetID, ok := intArgument(req.input, ButtonTeammate)
	if !ok {
		return reprompt(req, ProblemUnknownTeammate, nil), nil
	}
	student, err := m.assessor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}

	pending, err := m.domain.Ratings.TeammatesNotYetRated(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	for _, teammate := range pending {
		if teammate.StudentID != targetID {
			continue
		}
		minScore, maxScore := m.domain.Ratings.Bounds()
		return advance(StepReviewRating, PromptAskRating,
			map[string]string{keyTargetID: itoa(teammate.StudentID), keyTargetName: teammate.Name},
			map[string]any{"target_name": teammate.Name, "min_rating": minScore, "max_rating": maxScore},
		), nil
	}
	return reprompt(req, ProblemUnknownTeammate, map[string]any{"teammates": studentViews(pending)}), nil
}

func handleReviewRating(_ context.Context, m *Machine, req request) (result, error) {
	minScore, maxScore := m.domain.Ratings.Bounds()
	score, ok := intArgument(req.input, ButtonRating)
	if !ok || !validator.IsValidRating(int(score), minScore, maxScore) {
		return reprompt(req, ProblemInvalidRating, map[string]any{"min_rating": minScore, "max_rating": maxScore}), nil
	}
	return advance(StepReviewAdvantages, PromptAskAdvantages,
		map[string]string{keyRating: itoa(score)},
		map[string]any{"target_name": req.value(keyTargetName)},
	), nil
}

func handleReviewAdvantages(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidReviewText(req.input) {
		return reprompt(req, ProblemInvalidReviewText, nil), nil
	}
	return advance(StepReviewDisadvantages, PromptAskDisadvantages,
		map[string]string{keyAdvantages: req.input},
		map[string]any{"target_name": req.value(keyTargetName)},
	), nil
}

func handleReviewDisadvantages(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidReviewText(req.input) {
		return reprompt(req, ProblemInvalidReviewText, nil), nil
	}
	return advance(StepReviewConfirm, PromptConfirmRating,
		map[string]string{keyDisadvantages: req.input},
		map[string]any{
			"target_name":   req.value(keyTargetName),
			"rating":        int(atoi(req.value(keyRating))),
			"advantages":    req.value(keyAdvantages),
			"disadvantages": req.input,
		},
	), nil
}

// handleReviewConfirm stores the rating and loops back to teammate selection while anyone is left.
func handleReviewConfirm(ctx context.Context, m *Machine, req request) (result, error) {
	if !isCommand(req.input, CommandConfirm) {
		return reprompt(req, ProblemUnknownInput, nil), nil
	}
	student, err := m.assessor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}

	_, err = m.domain.Ratings.Upsert(ctx, services.UpsertRatingInput{
		AssessorID:    student.StudentID,
		AssessedID:    atoi(req.value(keyTargetID)),
		Score:         int(atoi(req.value(keyRating))),
		Advantages:    req.value(keyAdvantages),
		Disadvantages: req.value(keyDisadvantages),
	})
	if err != nil {
		return result{}, err
	}

	pending, err := m.domain.Ratings.TeammatesNotYetRated(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	targetName := req.value(keyTargetName)
	if len(pending) == 0 {
		return finish(PromptAllRated, map[string]any{"target_name": targetName}), nil
	}
	return restart(StepReviewTeammate, PromptRatingSaved, nil, map[string]any{
		"target_name": targetName,
		"teammates":   studentViews(pending),
	}), nil
}
