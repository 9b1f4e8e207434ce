package dialog

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/validator"
)

func (m *Machine) enterRegistration(ctx context.Context, req request) (result, error) {
	_, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if team != nil {
		return finish(PromptAlreadyTeam, map[string]any{"team_name": team.TeamName}), nil
	}
	return restart(StepRegTeamName, PromptAskTeamName, nil, nil), nil
}

func handleRegTeamName(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidTeamName(req.input) {
		return reprompt(req, ProblemInvalidTeamName, nil), nil
	}
	return advance(StepRegProductName, PromptAskProductName, map[string]string{keyTeamName: req.input}, nil), nil
}

func handleRegProductName(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidProductName(req.input) {
		return reprompt(req, ProblemInvalidProductName, nil), nil
	}
	return advance(StepRegUserName, PromptAskUserName,
		map[string]string{keyProductName: req.input},
		suggestedName(req.event),
	), nil
}

func handleRegUserName(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidFullName(req.input) {
		return reprompt(req, ProblemInvalidFullName, suggestedName(req.event)), nil
	}
	return advance(StepRegUserGroup, PromptAskUserGroup, map[string]string{keyUserName: req.input}, nil), nil
}

func handleRegUserGroup(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidGroupNumber(req.input) {
		return reprompt(req, ProblemInvalidGroup, nil), nil
	}
	return advance(StepRegConfirm, PromptConfirmTeam,
		map[string]string{keyUserGroup: req.input},
		map[string]any{
			"team_name":    req.value(keyTeamName),
			"product_name": req.value(keyProductName),
			"user_name":    req.value(keyUserName),
			"user_group":   req.input,
		},
	), nil
}

func handleRegConfirm(ctx context.Context, m *Machine, req request) (result, error) {
	if !isCommand(req.input, CommandConfirm) {
		return reprompt(req, ProblemUnknownInput, nil), nil
	}

	team, _, err := m.domain.Teams.RegisterTeam(ctx, services.RegisterTeamInput{
		ExternalID:  req.event.UserID,
		StudentName: req.value(keyUserName),
		Group:       req.value(keyUserGroup),
		TeamName:    req.value(keyTeamName),
		ProductName: req.value(keyProductName),
	})
	if errors.Is(err, services.ErrAlreadyInTeam) {
		return finishWithProblem(PromptAlreadyTeam, services.ErrAlreadyInTeam.Code, nil), nil
	}
	if err != nil {
		m.log.Warn("team registration failed", zap.Int64("user_id", req.event.UserID), zap.Error(err))
		return finishWithProblem(PromptRetryLater, errorCode(err), nil), nil
	}

	return finish(PromptTeamCreated, map[string]any{
		"team_id":      team.TeamID,
		"team_name":    team.TeamName,
		"product_name": team.ProductName,
		"invite_code":  team.InviteCode,
		"invite_link":  m.inviteLink(team.InviteCode),
	}), nil
}

// suggestedName offers the chat profile name when it already satisfies the name rules.
func suggestedName(event Event) map[string]any {
	name := strings.TrimSpace(strings.TrimSpace(event.FirstName) + " " + strings.TrimSpace(event.LastName))
	if !validator.IsValidFullName(name) {
		return nil
	}
	return map[string]any{"suggested_name": name}
}
