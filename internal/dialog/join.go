package dialog

import (
	"context"
	"errors"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/validator"
)

func (m *Machine) enterJoin(ctx context.Context, req request) (result, error) {
	_, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if team != nil {
		return finish(PromptAlreadyTeam, map[string]any{"team_name": team.TeamName}), nil
	}
	return restart(StepJoinInviteCode, PromptAskInviteCode, nil, nil), nil
}

func handleJoinInviteCode(ctx context.Context, m *Machine, req request) (result, error) {
	return m.beginJoin(ctx, req, services.NormaliseInviteCode(req.input), false)
}

// beginJoin resolves code and routes known students straight to role selection.
// A deep link with an unknown code ends the dialog; a typed code may be retried.
func (m *Machine) beginJoin(ctx context.Context, req request, code string, deepLink bool) (result, error) {
	team, err := m.domain.Teams.GetByInviteCode(ctx, code)
	if errors.Is(err, services.ErrTeamNotFound) {
		if deepLink {
			return finishWithProblem(PromptInviteNotFound, services.ErrTeamNotFound.Code, map[string]any{"invite_code": code}), nil
		}
		return reprompt(req, services.ErrTeamNotFound.Code, map[string]any{"invite_code": code}), nil
	}
	if err != nil {
		return result{}, err
	}

	student, current, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if current != nil {
		return finishWithProblem(PromptAlreadyTeam, services.ErrAlreadyInTeam.Code, map[string]any{"team_name": current.TeamName}), nil
	}

	data := map[string]string{
		keyInviteCode: team.InviteCode,
		keyTeamID:     itoa(team.TeamID),
		keyTeamName:   team.TeamName,
	}
	if student != nil {
		data[keyKnown] = "1"
		return restart(StepJoinUserRole, PromptAskRole, data, map[string]any{
			"team_name": team.TeamName,
			"roles":     models.Roles,
		}), nil
	}

	promptData := map[string]any{"team_name": team.TeamName}
	for k, v := range suggestedName(req.event) {
		promptData[k] = v
	}
	return restart(StepJoinUserName, PromptAskUserName, data, promptData), nil
}

func handleJoinUserName(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidFullName(req.input) {
		return reprompt(req, ProblemInvalidFullName, suggestedName(req.event)), nil
	}
	return advance(StepJoinUserGroup, PromptAskUserGroup, map[string]string{keyUserName: req.input}, nil), nil
}

func handleJoinUserGroup(_ context.Context, _ *Machine, req request) (result, error) {
	if !validator.IsValidGroupNumber(req.input) {
		return reprompt(req, ProblemInvalidGroup, nil), nil
	}
	return advance(StepJoinUserRole, PromptAskRole,
		map[string]string{keyUserGroup: req.input},
		map[string]any{"team_name": req.value(keyTeamName), "roles": models.Roles},
	), nil
}

func handleJoinUserRole(_ context.Context, _ *Machine, req request) (result, error) {
	role, ok := roleArgument(req.input)
	if !ok {
		return reprompt(req, ProblemInvalidRole, map[string]any{"roles": models.Roles}), nil
	}
	return advance(StepJoinConfirm, PromptConfirmJoin,
		map[string]string{keyUserRole: role},
		map[string]any{
			"team_name":  req.value(keyTeamName),
			"user_name":  req.value(keyUserName),
			"user_group": req.value(keyUserGroup),
			"role":       role,
			"known":      req.value(keyKnown) == "1",
		},
	), nil
}

func handleJoinConfirm(ctx context.Context, m *Machine, req request) (result, error) {
	if !isCommand(req.input, CommandConfirm) {
		return reprompt(req, ProblemUnknownInput, nil), nil
	}

	code := req.value(keyInviteCode)
	role := req.value(keyUserRole)

	var err error
	if req.value(keyKnown) == "1" {
		var student *models.Student
		student, err = m.findStudent(ctx, req.event.UserID)
		if err == nil && student == nil {
			err = services.ErrStudentNotFound
		}
		if err == nil {
			_, err = m.domain.Teams.JoinTeam(ctx, code, student.StudentID, role)
		}
	} else {
		_, _, err = m.domain.Teams.JoinTeamAsNewcomer(ctx, services.JoinTeamInput{
			ExternalID:  req.event.UserID,
			StudentName: req.value(keyUserName),
			Group:       req.value(keyUserGroup),
			InviteCode:  code,
			Role:        role,
		})
	}

	switch {
	case errors.Is(err, services.ErrTeamNotFound):
		return finishWithProblem(PromptInviteNotFound, services.ErrTeamNotFound.Code, map[string]any{"invite_code": code}), nil
	case errors.Is(err, services.ErrAlreadyInTeam):
		return finishWithProblem(PromptAlreadyTeam, services.ErrAlreadyInTeam.Code, nil), nil
	case err != nil:
		return result{}, err
	}

	return finish(PromptJoinedTeam, map[string]any{
		"team_name": req.value(keyTeamName),
		"role":      role,
	}), nil
}
