package dialog

import (
	"context"
	"errors"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
)

// start handles /start from anywhere: the session is dropped and either the welcome screen
// or the deep-link join flow follows.
func (m *Machine) start(ctx context.Context, req request, code string) (result, error) {
	if code != "" {
		return m.beginJoin(ctx, req, services.NormaliseInviteCode(code), true)
	}
	menu, err := m.menuData(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	return finish(PromptWelcome, menu), nil
}

func handleIdle(ctx context.Context, m *Machine, req request) (result, error) {
	if sprint, ok := intArgument(req.input, CommandEditReport); ok {
		return m.enterEditReport(ctx, req, int(sprint))
	}
	if sprint, ok := intArgument(req.input, CommandDeleteReport); ok {
		return m.enterDeleteReport(ctx, req, int(sprint))
	}

	switch normaliseCommand(req.input) {
	case CommandRegisterTeam:
		return m.enterRegistration(ctx, req)
	case CommandJoinTeam:
		return m.enterJoin(ctx, req)
	case CommandSendReport:
		return enterReport(ctx, m, req)
	case CommandRateTeammates:
		return m.enterReview(ctx, req)
	case CommandRemoveMember:
		return m.enterRemoval(ctx, req)
	case CommandTeamStats:
		return m.enterStats(ctx, req)
	case CommandMyTeam:
		return m.myTeam(ctx, req)
	case CommandMyReports:
		return m.myReports(ctx, req)
	case CommandTeamReport:
		return m.teamReport(ctx, req)
	case CommandWhoRatedMe:
		return m.whoRatedMe(ctx, req)
	case CommandHelp:
		return finish(PromptHelp, map[string]any{"reviews_enabled": m.domain.Config.ReviewsEnabled}), nil
	case CommandMenu:
		menu, err := m.menuData(ctx, req.event.UserID)
		if err != nil {
			return result{}, err
		}
		return finish(PromptMenu, menu), nil
	}
	return reprompt(req, ProblemUnknownInput, nil), nil
}

// findStudent returns nil when the user has never registered.
func (m *Machine) findStudent(ctx context.Context, externalID int64) (*models.Student, error) {
	student, err := m.domain.Students.GetByExternalID(ctx, externalID)
	if errors.Is(err, services.ErrStudentNotFound) {
		return nil, nil
	}
	return student, err
}

// membership resolves the user's student row and team. Either may be nil.
func (m *Machine) membership(ctx context.Context, externalID int64) (*models.Student, *models.Team, *models.TeamMembership, error) {
	student, err := m.findStudent(ctx, externalID)
	if err != nil || student == nil {
		return nil, nil, nil, err
	}
	team, member, err := m.domain.Teams.MembershipOf(ctx, student.StudentID)
	if errors.Is(err, services.ErrNotInTeam) {
		return student, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return student, team, member, nil
}

func (m *Machine) menuData(ctx context.Context, externalID int64) (map[string]any, error) {
	student, team, _, err := m.membership(ctx, externalID)
	if err != nil {
		return nil, err
	}
	data := map[string]any{
		"registered":      student != nil,
		"has_team":        team != nil,
		"is_admin":        team != nil && team.AdminStudentID == student.StudentID,
		"reviews_enabled": m.domain.Config.ReviewsEnabled,
	}
	if team != nil {
		data["team_name"] = team.TeamName
	}
	return data, nil
}

func (m *Machine) inviteLink(code string) string {
	if m.host == "" || m.botHandle == "" {
		return ""
	}
	return services.InviteLink(m.host, m.botHandle, code)
}

func (m *Machine) myTeam(ctx context.Context, req request) (result, error) {
	student, team, member, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if team == nil {
		return finish(PromptNotInTeam, nil), nil
	}
	members, err := m.domain.Teams.ListMembers(ctx, team.TeamID)
	if err != nil {
		return result{}, err
	}
	return finish(PromptMyTeam, map[string]any{
		"team_name":    team.TeamName,
		"product_name": team.ProductName,
		"invite_code":  team.InviteCode,
		"invite_link":  m.inviteLink(team.InviteCode),
		"role":         member.Role,
		"is_admin":     team.AdminStudentID == student.StudentID,
		"members":      memberViews(members, team.AdminStudentID),
	}), nil
}

func (m *Machine) myReports(ctx context.Context, req request) (result, error) {
	student, err := m.findStudent(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}
	reports, err := m.domain.Reports.ListByStudent(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	return finish(PromptMyReports, map[string]any{"reports": reportViews(reports)}), nil
}

func (m *Machine) teamReport(ctx context.Context, req request) (result, error) {
	_, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if team == nil {
		return finish(PromptNotInTeam, nil), nil
	}
	stats, err := m.domain.Stats.TeamStats(ctx, team.TeamID)
	if err != nil {
		return result{}, err
	}
	rows := make([]map[string]any, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, statsView(s))
	}
	return finish(PromptTeamReport, map[string]any{"team_name": team.TeamName, "members": rows}), nil
}

func (m *Machine) whoRatedMe(ctx context.Context, req request) (result, error) {
	student, err := m.findStudent(ctx, req.event.UserID)
	if err != nil {
		return result{}, err
	}
	if student == nil {
		return finish(PromptNotInTeam, nil), nil
	}
	ratings, err := m.domain.Ratings.ReceivedBy(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	return finish(PromptWhoRatedMe, map[string]any{"ratings": ratingViews(ratings)}), nil
}
