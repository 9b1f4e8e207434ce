package dialog

import "strings"

// Step is a position inside a workflow. The set is closed; persisted sessions store Step.String().
type Step int

const (
	StepIdle Step = iota

	StepRegTeamName
	StepRegProductName
	StepRegUserName
	StepRegUserGroup
	StepRegConfirm

	StepJoinInviteCode
	StepJoinUserName
	StepJoinUserGroup
	StepJoinUserRole
	StepJoinConfirm

	StepReportSprint
	StepReportText
	StepReportDeleteConfirm

	StepReviewTeammate
	StepReviewRating
	StepReviewAdvantages
	StepReviewDisadvantages
	StepReviewConfirm

	StepAdminMember
	StepAdminConfirmRemoval
	StepAdminStatsMember
)

// Workflow names.
const (
	WorkflowIdle             = "Idle"
	WorkflowTeamRegistration = "TeamRegistration"
	WorkflowJoinTeam         = "JoinTeam"
	WorkflowReportCreation   = "ReportCreation"
	WorkflowReviewProcess    = "ReviewProcess"
	WorkflowAdminActions     = "AdminActions"
)

var stepNames = map[Step]string{
	StepIdle: WorkflowIdle,

	StepRegTeamName:    WorkflowTeamRegistration + ":team_name",
	StepRegProductName: WorkflowTeamRegistration + ":product_name",
	StepRegUserName:    WorkflowTeamRegistration + ":user_name",
	StepRegUserGroup:   WorkflowTeamRegistration + ":user_group",
	StepRegConfirm:     WorkflowTeamRegistration + ":confirm",

	StepJoinInviteCode: WorkflowJoinTeam + ":invite_code",
	StepJoinUserName:   WorkflowJoinTeam + ":user_name",
	StepJoinUserGroup:  WorkflowJoinTeam + ":user_group",
	StepJoinUserRole:   WorkflowJoinTeam + ":user_role",
	StepJoinConfirm:    WorkflowJoinTeam + ":confirm",

	StepReportSprint:        WorkflowReportCreation + ":sprint_selection",
	StepReportText:          WorkflowReportCreation + ":report_text",
	StepReportDeleteConfirm: WorkflowReportCreation + ":delete_confirm",

	StepReviewTeammate:      WorkflowReviewProcess + ":teammate_selection",
	StepReviewRating:        WorkflowReviewProcess + ":rating_input",
	StepReviewAdvantages:    WorkflowReviewProcess + ":advantages_input",
	StepReviewDisadvantages: WorkflowReviewProcess + ":disadvantages_input",
	StepReviewConfirm:       WorkflowReviewProcess + ":confirmation",

	StepAdminMember:         WorkflowAdminActions + ":member_selection",
	StepAdminConfirmRemoval: WorkflowAdminActions + ":confirm_removal",
	StepAdminStatsMember:    WorkflowAdminActions + ":stats_member_selection",
}

var stepsByName = func() map[string]Step {
	out := make(map[string]Step, len(stepNames))
	for step, name := range stepNames {
		out[name] = step
	}
	return out
}()

// String returns the persisted name, e.g. "ReportCreation:report_text".
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Workflow returns the workflow the step belongs to.
func (s Step) Workflow() string {
	name := s.String()
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// ParseStep resolves a persisted step name. An empty name is idle.
func ParseStep(name string) (Step, bool) {
	if name == "" {
		return StepIdle, true
	}
	step, ok := stepsByName[name]
	return step, ok
}
