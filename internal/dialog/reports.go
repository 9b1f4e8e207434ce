package dialog

import (
	"context"
	"errors"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/validator"
)

// reportAuthor resolves the student submitting reports. Reports require a team, and
// membership is re-read on every step since an admin may remove the student mid-dialog.
func (m *Machine) reportAuthor(ctx context.Context, req request) (*models.Student, bool, error) {
	student, team, _, err := m.membership(ctx, req.event.UserID)
	if err != nil {
		return nil, false, err
	}
	return student, team != nil, nil
}

// enterReport opens sprint selection. It doubles as the back target of report_text.
func enterReport(ctx context.Context, m *Machine, req request) (result, error) {
	student, inTeam, err := m.reportAuthor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if !inTeam {
		return finish(PromptNotInTeam, nil), nil
	}

	reports, err := m.domain.Reports.ListByStudent(ctx, student.StudentID)
	if err != nil {
		return result{}, err
	}
	submitted := make([]int, 0, len(reports))
	for _, report := range reports {
		submitted = append(submitted, report.SprintNum)
	}
	sprints := make([]int, 0, m.domain.Reports.MaxSprint())
	for n := 1; n <= m.domain.Reports.MaxSprint(); n++ {
		sprints = append(sprints, n)
	}

	return restart(StepReportSprint, PromptAskSprint, nil, map[string]any{
		"sprints":   sprints,
		"submitted": submitted,
	}), nil
}

func handleReportSprint(ctx context.Context, m *Machine, req request) (result, error) {
	sprint, ok := intArgument(req.input, ButtonSprint)
	if !ok || !validator.IsValidSprint(int(sprint), m.domain.Reports.MaxSprint()) {
		return reprompt(req, ProblemInvalidSprint, nil), nil
	}
	student, inTeam, err := m.reportAuthor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if !inTeam {
		return finish(PromptNotInTeam, nil), nil
	}

	data := map[string]string{keySprint: itoa(sprint), keyEditing: "0"}
	promptData := map[string]any{"sprint": int(sprint)}

	existing, err := m.domain.Reports.Get(ctx, student.StudentID, int(sprint))
	switch {
	case err == nil:
		data[keyEditing] = "1"
		promptData["current_text"] = existing.ReportText
	case !errors.Is(err, services.ErrReportNotFound):
		return result{}, err
	}
	return advance(StepReportText, PromptAskReportText, data, promptData), nil
}

func handleReportText(ctx context.Context, m *Machine, req request) (result, error) {
	if !validator.IsValidReportText(req.input) {
		return reprompt(req, ProblemInvalidReportText, map[string]any{
			"min_length": validator.ReportTextMin,
			"max_length": validator.ReportTextMax,
		}), nil
	}
	student, inTeam, err := m.reportAuthor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if !inTeam {
		return finish(PromptNotInTeam, nil), nil
	}

	sprint := int(atoi(req.value(keySprint)))
	report, created, err := m.domain.Reports.Upsert(ctx, student.StudentID, sprint, req.input)
	if err != nil {
		return result{}, err
	}

	prompt := PromptReportSent
	if req.value(keyEditing) == "1" || !created {
		prompt = PromptReportUpdated
	}
	return finish(prompt, map[string]any{"sprint": report.SprintNum}), nil
}

func (m *Machine) enterEditReport(ctx context.Context, req request, sprint int) (result, error) {
	report, res, err := m.ownReport(ctx, req, sprint)
	if err != nil || report == nil {
		return res, err
	}
	return restart(StepReportText, PromptAskReportText,
		map[string]string{keySprint: itoa(int64(sprint)), keyEditing: "1"},
		map[string]any{"sprint": sprint, "current_text": report.ReportText},
	), nil
}

func (m *Machine) enterDeleteReport(ctx context.Context, req request, sprint int) (result, error) {
	report, res, err := m.ownReport(ctx, req, sprint)
	if err != nil || report == nil {
		return res, err
	}
	return restart(StepReportDeleteConfirm, PromptConfirmDelete,
		map[string]string{keySprint: itoa(int64(sprint))},
		map[string]any{"sprint": sprint, "current_text": report.ReportText},
	), nil
}

// ownReport loads the user's report for sprint. When it returns a nil report, res ends the dialog.
func (m *Machine) ownReport(ctx context.Context, req request, sprint int) (*models.SprintReport, result, error) {
	if !validator.IsValidSprint(sprint, m.domain.Reports.MaxSprint()) {
		return nil, finishWithProblem(PromptReportNotFound, ProblemInvalidSprint, nil), nil
	}
	student, inTeam, err := m.reportAuthor(ctx, req)
	if err != nil {
		return nil, result{}, err
	}
	if !inTeam {
		return nil, finish(PromptNotInTeam, nil), nil
	}
	report, err := m.domain.Reports.Get(ctx, student.StudentID, sprint)
	if errors.Is(err, services.ErrReportNotFound) {
		return nil, finishWithProblem(PromptReportNotFound, services.ErrReportNotFound.Code, map[string]any{"sprint": sprint}), nil
	}
	if err != nil {
		return nil, result{}, err
	}
	return report, result{}, nil
}

func handleReportDelete(ctx context.Context, m *Machine, req request) (result, error) {
	if !isCommand(req.input, CommandConfirm) {
		return reprompt(req, ProblemUnknownInput, nil), nil
	}
	student, inTeam, err := m.reportAuthor(ctx, req)
	if err != nil {
		return result{}, err
	}
	if !inTeam {
		return finish(PromptNotInTeam, nil), nil
	}

	sprint := int(atoi(req.value(keySprint)))
	err = m.domain.Reports.Delete(ctx, student.StudentID, sprint)
	if errors.Is(err, services.ErrReportNotFound) {
		return finishWithProblem(PromptReportNotFound, services.ErrReportNotFound.Code, map[string]any{"sprint": sprint}), nil
	}
	if err != nil {
		return result{}, err
	}
	return finish(PromptReportDeleted, map[string]any{"sprint": sprint}), nil
}
