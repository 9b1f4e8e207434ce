package dialog

import (
	"context"
	"errors"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
)

// adminTeam resolves the requesting admin and their team. A nil team with a non-empty
// result means the user is not allowed in and res ends the dialog.
func (m *Machine) adminTeam(ctx context.Context, req request) (*models.Student, *models.Team, result, error) {
	student, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return nil, nil, result{}, err
	}
	if team == nil {
		return nil, nil, finish(PromptNotInTeam, nil), nil
	}
	if team.AdminStudentID != student.StudentID {
		return nil, nil, finishWithProblem(PromptNotAdmin, services.ErrPermissionDenied.Code, nil), nil
	}
	return student, team, result{}, nil
}

func (m *Machine) enterRemoval(ctx context.Context, req request) (result, error) {
	_, team, res, err := m.adminTeam(ctx, req)
	if err != nil || team == nil {
		return res, err
	}
	members, err := m.domain.Teams.ListMembers(ctx, team.TeamID)
	if err != nil {
		return result{}, err
	}
	removable := members[:0:0]
	for _, member := range members {
		if member.StudentID != team.AdminStudentID {
			removable = append(removable, member)
		}
	}
	if len(removable) == 0 {
		return finish(PromptNoMembers, nil), nil
	}
	return restart(StepAdminMember, PromptAskMemberRemoval,
		map[string]string{keyTeamID: itoa(team.TeamID)},
		map[string]any{"members": memberViews(removable, team.AdminStudentID)},
	), nil
}

func handleAdminMember(ctx context.Context, m *Machine, req request) (result, error) {
	memberID, ok := intArgument(req.input, ButtonMember)
	if !ok {
		return reprompt(req, ProblemUnknownMember, nil), nil
	}
	_, team, res, err := m.adminTeam(ctx, req)
	if err != nil || team == nil {
		return res, err
	}
	if memberID == team.AdminStudentID {
		return reprompt(req, services.ErrAdminSelfRemoval.Code, nil), nil
	}

	members, err := m.domain.Teams.ListMembers(ctx, team.TeamID)
	if err != nil {
		return result{}, err
	}
	for _, member := range members {
		if member.StudentID != memberID {
			continue
		}
		name := ""
		if member.Student != nil {
			name = member.Student.Name
		}
		return advance(StepAdminConfirmRemoval, PromptConfirmRemoval,
			map[string]string{keyMemberID: itoa(memberID), keyMemberName: name},
			map[string]any{"member_name": name, "role": member.Role},
		), nil
	}
	return reprompt(req, ProblemUnknownMember, nil), nil
}

func handleAdminConfirmRemoval(ctx context.Context, m *Machine, req request) (result, error) {
	if !isCommand(req.input, CommandConfirm) {
		return reprompt(req, ProblemUnknownInput, nil), nil
	}
	student, err := m.findStudent(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}

	memberName := req.value(keyMemberName)
	err = m.domain.Teams.RemoveMember(ctx, atoi(req.value(keyTeamID)), atoi(req.value(keyMemberID)), student.StudentID)
	if errors.Is(err, services.ErrTeamMemberNotFound) {
		return finishWithProblem(PromptError, services.ErrTeamMemberNotFound.Code, map[string]any{"member_name": memberName}), nil
	}
	if err != nil {
		return result{}, err
	}
	return finish(PromptMemberRemoved, map[string]any{"member_name": memberName}), nil
}

func (m *Machine) enterStats(ctx context.Context, req request) (result, error) {
	_, team, res, err := m.adminTeam(ctx, req)
	if err != nil || team == nil {
		return res, err
	}
	members, err := m.domain.Teams.ListMembers(ctx, team.TeamID)
	if err != nil {
		return result{}, err
	}
	return restart(StepAdminStatsMember, PromptAskMemberStats,
		map[string]string{keyTeamID: itoa(team.TeamID)},
		map[string]any{"members": memberViews(members, team.AdminStudentID)},
	), nil
}

func handleAdminStatsMember(ctx context.Context, m *Machine, req request) (result, error) {
	memberID, ok := intArgument(req.input, ButtonMember)
	if !ok {
		return reprompt(req, ProblemUnknownMember, nil), nil
	}
	student, err := m.findStudent(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}

	stats, err := m.domain.Stats.MemberStats(ctx, atoi(req.value(keyTeamID)), memberID, student.StudentID)
	if errors.Is(err, services.ErrTeamMemberNotFound) {
		return reprompt(req, ProblemUnknownMember, nil), nil
	}
	if err != nil {
		return result{}, err
	}
	return finish(PromptMemberStats, statsView(*stats)), nil
}
