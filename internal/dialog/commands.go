package dialog

import (
	"strconv"
	"strings"

	"github.com/studhelper/studhelper/internal/models"
)

// Commands and button payloads understood by the machine.
const (
	CommandStart         = "/start"
	CommandCancel        = "cancel"
	CommandBack          = "back"
	CommandConfirm       = "confirm"
	CommandRegisterTeam  = "register_team"
	CommandJoinTeam      = "join_team"
	CommandSendReport    = "send_report"
	CommandEditReport    = "edit_report"
	CommandDeleteReport  = "delete_report"
	CommandRateTeammates = "rate_teammates"
	CommandRemoveMember  = "remove_member"
	CommandTeamStats     = "team_stats"
	CommandMyTeam        = "my_team"
	CommandMyReports     = "my_reports"
	CommandTeamReport    = "team_report"
	CommandWhoRatedMe    = "who_rated_me"
	CommandHelp          = "help"
	CommandMenu          = "menu"

	ButtonSprint   = "sprint"
	ButtonRating   = "rating"
	ButtonTeammate = "teammate"
	ButtonMember   = "member"
	ButtonRole     = "role"
)

// Session data keys.
const (
	keyTeamName      = "team_name"
	keyProductName   = "product_name"
	keyUserName      = "user_name"
	keyUserGroup     = "user_group"
	keyInviteCode    = "invite_code"
	keyTeamID        = "team_id"
	keyKnown         = "known"
	keyUserRole      = "user_role"
	keySprint        = "sprint"
	keyEditing       = "editing"
	keyTargetID      = "target_id"
	keyTargetName    = "target_name"
	keyRating        = "rating"
	keyAdvantages    = "advantages"
	keyDisadvantages = "disadvantages"
	keyMemberID      = "member_id"
	keyMemberName    = "member_name"
)

// roleButtons maps role button payloads onto stored role names.
var roleButtons = map[string]string{
	"po":     models.RoleProductOwner,
	"sm":     models.RoleScrumMaster,
	"dev":    models.RoleDeveloper,
	"member": models.RoleMember,
}

func normaliseCommand(input string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(input), "/"))
}

func isCommand(input, command string) bool {
	return normaliseCommand(input) == command
}

// startArgument reports whether input is /start and returns its deep-link argument, if any.
func startArgument(input string) (string, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 || !strings.EqualFold(fields[0], CommandStart) {
		return "", false
	}
	if len(fields) > 1 {
		return fields[1], true
	}
	return "", true
}

// argument extracts the value of a "prefix:value" payload.
func argument(input, prefix string) (string, bool) {
	value, ok := strings.CutPrefix(normaliseCommandPrefix(input), prefix+":")
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func normaliseCommandPrefix(input string) string {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	if idx := strings.IndexByte(input, ':'); idx >= 0 {
		return strings.ToLower(input[:idx]) + input[idx:]
	}
	return strings.ToLower(input)
}

func intArgument(input, prefix string) (int64, bool) {
	value, ok := argument(input, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// roleArgument accepts "role:dev" style payloads or a full role name.
func roleArgument(input string) (string, bool) {
	value, ok := argument(input, ButtonRole)
	if !ok {
		return "", false
	}
	if role, ok := roleButtons[strings.ToLower(value)]; ok {
		return role, true
	}
	if models.IsKnownRole(value) {
		return value, true
	}
	return "", false
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
