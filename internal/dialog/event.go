package dialog

import "strings"

// EventKind distinguishes free text from button presses.
type EventKind string

const (
	EventText   EventKind = "text"
	EventButton EventKind = "button"
)

// Event is one inbound user action from the chat transport.
type Event struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	Kind      EventKind `json:"kind" validate:"required,oneof=text button"`
	Payload   string    `json:"payload"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
}

func (e Event) payload() string {
	return strings.TrimSpace(e.Payload)
}

// PromptKey names the message the transport should render.
type PromptKey string

const (
	PromptWelcome     PromptKey = "welcome"
	PromptMenu        PromptKey = "menu"
	PromptHelp        PromptKey = "help"
	PromptCancelled   PromptKey = "cancelled"
	PromptRetryLater  PromptKey = "retry_later"
	PromptError       PromptKey = "error"
	PromptNotInTeam   PromptKey = "not_in_team"
	PromptAlreadyTeam PromptKey = "already_in_team"
	PromptNotAdmin    PromptKey = "not_admin"

	PromptAskTeamName    PromptKey = "ask_team_name"
	PromptAskProductName PromptKey = "ask_product_name"
	PromptAskUserName    PromptKey = "ask_user_name"
	PromptAskUserGroup   PromptKey = "ask_user_group"
	PromptConfirmTeam    PromptKey = "confirm_team_registration"
	PromptTeamCreated    PromptKey = "team_created"

	PromptAskInviteCode  PromptKey = "ask_invite_code"
	PromptInviteNotFound PromptKey = "invite_not_found"
	PromptAskRole        PromptKey = "ask_role"
	PromptConfirmJoin    PromptKey = "confirm_join"
	PromptJoinedTeam     PromptKey = "joined_team"

	PromptAskSprint      PromptKey = "ask_sprint"
	PromptAskReportText  PromptKey = "ask_report_text"
	PromptReportSent     PromptKey = "report_sent"
	PromptReportUpdated  PromptKey = "report_updated"
	PromptConfirmDelete  PromptKey = "confirm_report_delete"
	PromptReportDeleted  PromptKey = "report_deleted"
	PromptReportNotFound PromptKey = "report_not_found"

	PromptReviewsDisabled  PromptKey = "reviews_disabled"
	PromptAskTeammate      PromptKey = "ask_teammate"
	PromptAskRating        PromptKey = "ask_rating"
	PromptAskAdvantages    PromptKey = "ask_advantages"
	PromptAskDisadvantages PromptKey = "ask_disadvantages"
	PromptConfirmRating    PromptKey = "confirm_rating"
	PromptRatingSaved      PromptKey = "rating_saved"
	PromptAllRated         PromptKey = "all_rated"

	PromptAskMemberRemoval PromptKey = "ask_member_removal"
	PromptConfirmRemoval   PromptKey = "confirm_removal"
	PromptMemberRemoved    PromptKey = "member_removed"
	PromptNoMembers        PromptKey = "no_members"
	PromptAskMemberStats   PromptKey = "ask_member_stats"
	PromptMemberStats      PromptKey = "member_stats"

	PromptMyTeam     PromptKey = "my_team"
	PromptMyReports  PromptKey = "my_reports"
	PromptTeamReport PromptKey = "team_report"
	PromptWhoRatedMe PromptKey = "who_rated_me"
)

// Problems attached to re-prompts.
const (
	ProblemUnknownInput       = "unknown_input"
	ProblemUnexpectedKind     = "unexpected_input_kind"
	ProblemInvalidTeamName    = "invalid_team_name"
	ProblemInvalidProductName = "invalid_product_name"
	ProblemInvalidFullName    = "invalid_full_name"
	ProblemInvalidGroup       = "invalid_group"
	ProblemInvalidRole        = "invalid_role"
	ProblemInvalidSprint      = "invalid_sprint"
	ProblemInvalidReportText  = "invalid_report_text"
	ProblemInvalidRating      = "invalid_rating"
	ProblemInvalidReviewText  = "invalid_review_text"
	ProblemUnknownTeammate    = "unknown_teammate"
	ProblemUnknownMember      = "unknown_member"
	ProblemBackUnavailable    = "back_unavailable"
)

// Outcome tells the transport what to render and where the user now is.
type Outcome struct {
	Prompt   PromptKey      `json:"prompt"`
	Data     map[string]any `json:"data,omitempty"`
	Step     Step           `json:"-"`
	StepName string         `json:"step"`
	Terminal bool           `json:"terminal"`
	Problem  string         `json:"problem,omitempty"`
}
