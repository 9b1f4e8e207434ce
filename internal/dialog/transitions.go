package dialog

// transition describes what a step accepts and how it reacts.
type transition struct {
	accepts EventKind
	prompt  PromptKey
	handle  handler
	// back is nil where the workflow has no previous step to return to.
	back handler
}

var transitions map[Step]transition

func init() {
	transitions = map[Step]transition{
		StepRegTeamName:    {accepts: EventText, prompt: PromptAskTeamName, handle: handleRegTeamName},
		StepRegProductName: {accepts: EventText, prompt: PromptAskProductName, handle: handleRegProductName},
		StepRegUserName:    {accepts: EventText, prompt: PromptAskUserName, handle: handleRegUserName},
		StepRegUserGroup:   {accepts: EventText, prompt: PromptAskUserGroup, handle: handleRegUserGroup},
		StepRegConfirm:     {accepts: EventButton, prompt: PromptConfirmTeam, handle: handleRegConfirm},

		StepJoinInviteCode: {accepts: EventText, prompt: PromptAskInviteCode, handle: handleJoinInviteCode},
		StepJoinUserName:   {accepts: EventText, prompt: PromptAskUserName, handle: handleJoinUserName},
		StepJoinUserGroup:  {accepts: EventText, prompt: PromptAskUserGroup, handle: handleJoinUserGroup},
		StepJoinUserRole:   {accepts: EventButton, prompt: PromptAskRole, handle: handleJoinUserRole},
		StepJoinConfirm:    {accepts: EventButton, prompt: PromptConfirmJoin, handle: handleJoinConfirm},

		StepReportSprint:        {accepts: EventButton, prompt: PromptAskSprint, handle: handleReportSprint},
		StepReportText:          {accepts: EventText, prompt: PromptAskReportText, handle: handleReportText, back: enterReport},
		StepReportDeleteConfirm: {accepts: EventButton, prompt: PromptConfirmDelete, handle: handleReportDelete},

		StepReviewTeammate:      {accepts: EventButton, prompt: PromptAskTeammate, handle: handleReviewTeammate},
		StepReviewRating:        {accepts: EventButton, prompt: PromptAskRating, handle: handleReviewRating},
		StepReviewAdvantages:    {accepts: EventText, prompt: PromptAskAdvantages, handle: handleReviewAdvantages},
		StepReviewDisadvantages: {accepts: EventText, prompt: PromptAskDisadvantages, handle: handleReviewDisadvantages},
		StepReviewConfirm:       {accepts: EventButton, prompt: PromptConfirmRating, handle: handleReviewConfirm},

		StepAdminMember:         {accepts: EventButton, prompt: PromptAskMemberRemoval, handle: handleAdminMember},
		StepAdminConfirmRemoval: {accepts: EventButton, prompt: PromptConfirmRemoval, handle: handleAdminConfirmRemoval},
		StepAdminStatsMember:    {accepts: EventButton, prompt: PromptAskMemberStats, handle: handleAdminStatsMember},
	}
}
