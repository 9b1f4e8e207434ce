package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/internal/database/testutil"
	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/internal/session"
	"github.com/studhelper/studhelper/pkg/metrics"
)

type testHarness struct {
	machine *Machine
	domain  *services.Domain
	store   *session.MemoryStore
}

func newHarness(t *testing.T, cfg services.DomainConfig, opts ...services.TeamOption) *testHarness {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	domain, err := services.NewDomain(db, cfg, opts...)
	require.NoError(t, err)

	store := session.NewMemoryStore()
	machine, err := NewMachine(domain, store, WithInviteLink("t.me", "@studhelper_bot"))
	require.NoError(t, err)
	return &testHarness{machine: machine, domain: domain, store: store}
}

func (h *testHarness) text(t *testing.T, userID int64, payload string) Outcome {
	t.Helper()
	out, err := h.machine.Handle(context.Background(), Event{UserID: userID, Kind: EventText, Payload: payload})
	require.NoError(t, err)
	return out
}

func (h *testHarness) button(t *testing.T, userID int64, payload string) Outcome {
	t.Helper()
	out, err := h.machine.Handle(context.Background(), Event{UserID: userID, Kind: EventButton, Payload: payload})
	require.NoError(t, err)
	return out
}

// seedTeam registers an admin and members directly through the domain.
func (h *testHarness) seedTeam(t *testing.T, adminExternalID int64, memberExternalIDs ...int64) (*models.Team, map[int64]*models.Student) {
	t.Helper()
	ctx := context.Background()
	names := []string{"Анна Смирнова", "Борис Кузнецов", "Вера Попова", "Глеб Соколов"}

	team, admin, err := h.domain.Teams.RegisterTeam(ctx, services.RegisterTeamInput{
		ExternalID:  adminExternalID,
		StudentName: names[0],
		Group:       "0",
		TeamName:    "Alpha",
		ProductName: "Widget",
	})
	require.NoError(t, err)

	students := map[int64]*models.Student{adminExternalID: admin}
	for i, externalID := range memberExternalIDs {
		_, student, err := h.domain.Teams.JoinTeamAsNewcomer(ctx, services.JoinTeamInput{
			ExternalID:  externalID,
			StudentName: names[(i+1)%len(names)],
			Group:       "0",
			InviteCode:  team.InviteCode,
			Role:        models.RoleDeveloper,
		})
		require.NoError(t, err)
		students[externalID] = student
	}
	return team, students
}

func TestEndToEndTeamReportScenario(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig(), services.WithInviteCodeGenerator(func() (string, error) {
		return "K7XQ4T9P", nil
	}))
	ctx := context.Background()

	out := h.text(t, 100, "/start")
	require.Equal(t, PromptWelcome, out.Prompt)
	require.Equal(t, false, out.Data["registered"])

	require.Equal(t, StepRegTeamName, h.text(t, 100, "register_team").Step)
	require.Equal(t, StepRegProductName, h.text(t, 100, "Alpha").Step)
	require.Equal(t, StepRegUserName, h.text(t, 100, "Widget").Step)
	require.Equal(t, StepRegUserGroup, h.text(t, 100, "Иван Иванов").Step)
	out = h.text(t, 100, "0")
	require.Equal(t, StepRegConfirm, out.Step)
	require.Equal(t, "Alpha", out.Data["team_name"])

	out = h.button(t, 100, "confirm")
	require.Equal(t, PromptTeamCreated, out.Prompt)
	require.True(t, out.Terminal)
	require.Equal(t, "K7XQ4T9P", out.Data["invite_code"])
	require.Equal(t, "https://t.me/studhelper_bot?start=K7XQ4T9P", out.Data["invite_link"])

	out = h.text(t, 200, "/start K7XQ4T9P")
	require.Equal(t, StepJoinUserName, out.Step)
	require.Equal(t, "Alpha", out.Data["team_name"])
	require.Equal(t, StepJoinUserGroup, h.text(t, 200, "Пётр Петров").Step)
	require.Equal(t, StepJoinUserRole, h.text(t, 200, "ПИ-21").Step)
	out = h.button(t, 200, "role:dev")
	require.Equal(t, StepJoinConfirm, out.Step)
	require.Equal(t, models.RoleDeveloper, out.Data["role"])
	out = h.button(t, 200, "confirm")
	require.Equal(t, PromptJoinedTeam, out.Prompt)

	founder, err := h.domain.Students.GetByExternalID(ctx, 100)
	require.NoError(t, err)
	team, _, err := h.domain.Teams.MembershipOf(ctx, founder.StudentID)
	require.NoError(t, err)
	members, err := h.domain.Teams.ListMembers(ctx, team.TeamID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	require.Equal(t, StepReportSprint, h.text(t, 100, "send_report").Step)
	out = h.button(t, 100, "sprint:1")
	require.Equal(t, StepReportText, out.Step)
	require.Nil(t, out.Data["current_text"])
	out = h.text(t, 100, "did X: set up the repository")
	require.Equal(t, PromptReportSent, out.Prompt)

	h.text(t, 100, "send_report")
	out = h.button(t, 100, "sprint:1")
	require.Equal(t, "did X: set up the repository", out.Data["current_text"])
	out = h.text(t, 100, "did X and Y: repository and CI pipeline")
	require.Equal(t, PromptReportUpdated, out.Prompt)

	reports, err := h.domain.Reports.ListByStudent(ctx, founder.StudentID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "did X and Y: repository and CI pipeline", reports[0].ReportText)
	require.Zero(t, h.store.Len())
}

func TestDuplicateConfirmCreatesOneTeam(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())

	h.text(t, 1, "register_team")
	h.text(t, 1, "Alpha")
	h.text(t, 1, "Widget")
	h.text(t, 1, "Иван Иванов")
	h.text(t, 1, "0")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.machine.Handle(context.Background(), Event{UserID: 1, Kind: EventButton, Payload: "confirm"})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, outcomes, 2)
	created := 0
	for _, out := range outcomes {
		if out.Prompt == PromptTeamCreated {
			created++
		} else {
			require.Equal(t, ProblemUnknownInput, out.Problem)
			require.Equal(t, StepIdle, out.Step)
		}
	}
	require.Equal(t, 1, created)

	counts, err := h.domain.Dashboard.Counts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts.Teams)
}

func TestCancelClearsSessionFromAnyStep(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())

	h.text(t, 1, "register_team")
	h.text(t, 1, "Alpha")
	out := h.button(t, 1, "cancel")
	require.Equal(t, PromptCancelled, out.Prompt)
	require.True(t, out.Terminal)
	require.Zero(t, h.store.Len())

	h.text(t, 1, "join_team")
	out = h.text(t, 1, "/cancel")
	require.Equal(t, PromptCancelled, out.Prompt)
	require.Zero(t, h.store.Len())

	counts, err := h.domain.Dashboard.Counts(context.Background())
	require.NoError(t, err)
	require.Zero(t, counts.Teams)
	require.Zero(t, counts.Students)
}

func TestInvalidInputRepromptsWithoutAdvancing(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())

	h.text(t, 1, "register_team")
	out := h.text(t, 1, "Al")
	require.Equal(t, StepRegTeamName, out.Step)
	require.Equal(t, PromptAskTeamName, out.Prompt)
	require.Equal(t, ProblemInvalidTeamName, out.Problem)

	h.text(t, 1, "Alpha")
	h.text(t, 1, "Widget")
	out = h.text(t, 1, "ivan ivanov")
	require.Equal(t, StepRegUserName, out.Step)
	require.Equal(t, ProblemInvalidFullName, out.Problem)

	out = h.button(t, 1, "confirm")
	require.Equal(t, StepRegUserName, out.Step)
	require.Equal(t, ProblemUnexpectedKind, out.Problem)

	out = h.button(t, 1, "back")
	require.Equal(t, ProblemBackUnavailable, out.Problem)

	state, ok, err := h.store.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StepRegUserName.String(), state.Step)
	require.Equal(t, "Alpha", state.Value("team_name"))

	out = h.text(t, 2, "something random")
	require.Equal(t, StepIdle, out.Step)
	require.Equal(t, ProblemUnknownInput, out.Problem)
}

func TestReportBackAndDelete(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	_, students := h.seedTeam(t, 1)

	h.text(t, 1, "send_report")
	require.Equal(t, StepReportText, h.button(t, 1, "sprint:2").Step)
	out := h.button(t, 1, "back")
	require.Equal(t, StepReportSprint, out.Step)
	require.Equal(t, PromptAskSprint, out.Prompt)

	out = h.button(t, 1, "sprint:7")
	require.Equal(t, ProblemInvalidSprint, out.Problem)

	h.button(t, 1, "sprint:2")
	out = h.text(t, 1, "too short")
	require.Equal(t, ProblemInvalidReportText, out.Problem)
	require.Equal(t, PromptReportSent, h.text(t, 1, "finished the sprint two backlog").Prompt)

	out = h.text(t, 1, "edit_report:2")
	require.Equal(t, StepReportText, out.Step)
	require.Equal(t, "finished the sprint two backlog", out.Data["current_text"])
	require.Equal(t, PromptReportUpdated, h.text(t, 1, "finished the sprint two backlog and demo").Prompt)

	out = h.text(t, 1, "delete_report:3")
	require.Equal(t, PromptReportNotFound, out.Prompt)

	require.Equal(t, StepReportDeleteConfirm, h.text(t, 1, "delete_report:2").Step)
	require.Equal(t, PromptReportDeleted, h.button(t, 1, "confirm").Prompt)

	reports, err := h.domain.Reports.ListByStudent(context.Background(), students[1].StudentID)
	require.NoError(t, err)
	require.Empty(t, reports)

	out = h.text(t, 99, "send_report")
	require.Equal(t, PromptNotInTeam, out.Prompt)
}

func TestReviewLoopUntilEveryoneRated(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	_, students := h.seedTeam(t, 1, 2, 3)
	admin, reviewer, other := students[1], students[2], students[3]

	out := h.text(t, 2, "rate_teammates")
	require.Equal(t, StepReviewTeammate, out.Step)
	require.Len(t, out.Data["teammates"], 2)

	out = h.button(t, 2, fmt.Sprintf("teammate:%d", reviewer.StudentID))
	require.Equal(t, ProblemUnknownTeammate, out.Problem)

	rate := func(target *models.Student) Outcome {
		require.Equal(t, StepReviewRating, h.button(t, 2, fmt.Sprintf("teammate:%d", target.StudentID)).Step)
		require.Equal(t, ProblemInvalidRating, h.button(t, 2, "rating:11").Problem)
		require.Equal(t, StepReviewAdvantages, h.button(t, 2, "rating:8").Step)
		require.Equal(t, StepReviewDisadvantages, h.text(t, 2, "always ready to help").Step)
		require.Equal(t, StepReviewConfirm, h.text(t, 2, "sometimes misses standups").Step)
		return h.button(t, 2, "confirm")
	}

	out = rate(admin)
	require.Equal(t, PromptRatingSaved, out.Prompt)
	require.Equal(t, StepReviewTeammate, out.Step)
	require.Len(t, out.Data["teammates"], 1)

	out = rate(other)
	require.Equal(t, PromptAllRated, out.Prompt)
	require.True(t, out.Terminal)

	received, err := h.domain.Ratings.ReceivedBy(context.Background(), admin.StudentID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, 8, received[0].OverallRating)

	require.Equal(t, PromptAllRated, h.text(t, 2, "rate_teammates").Prompt)
}

func TestReviewsCanBeDisabled(t *testing.T) {
	cfg := services.DefaultDomainConfig()
	cfg.ReviewsEnabled = false
	h := newHarness(t, cfg)
	h.seedTeam(t, 1, 2)

	out := h.text(t, 2, "rate_teammates")
	require.Equal(t, PromptReviewsDisabled, out.Prompt)
	require.Zero(t, h.store.Len())
}

func TestAdminRemovalAndStats(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	team, students := h.seedTeam(t, 1, 2, 3)
	admin, leaving, staying := students[1], students[2], students[3]

	require.Equal(t, PromptNotAdmin, h.text(t, 3, "remove_member").Prompt)

	out := h.text(t, 1, "remove_member")
	require.Equal(t, StepAdminMember, out.Step)
	require.Len(t, out.Data["members"], 2)

	out = h.button(t, 1, fmt.Sprintf("member:%d", admin.StudentID))
	require.Equal(t, services.ErrAdminSelfRemoval.Code, out.Problem)
	require.Equal(t, StepAdminMember, out.Step)

	out = h.button(t, 1, fmt.Sprintf("member:%d", leaving.StudentID))
	require.Equal(t, StepAdminConfirmRemoval, out.Step)
	require.Equal(t, leaving.Name, out.Data["member_name"])
	require.Equal(t, PromptMemberRemoved, h.button(t, 1, "confirm").Prompt)

	members, err := h.domain.Teams.ListMembers(context.Background(), team.TeamID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, PromptNotInTeam, h.text(t, 2, "my_team").Prompt)

	require.Equal(t, StepAdminStatsMember, h.text(t, 1, "team_stats").Step)
	out = h.button(t, 1, fmt.Sprintf("member:%d", staying.StudentID))
	require.Equal(t, PromptMemberStats, out.Prompt)
	require.Equal(t, staying.Name, out.Data["name"])
	require.True(t, out.Terminal)
}

func TestIdleQueries(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	team, _ := h.seedTeam(t, 1, 2)

	out := h.text(t, 1, "my_team")
	require.Equal(t, PromptMyTeam, out.Prompt)
	require.Equal(t, team.InviteCode, out.Data["invite_code"])
	require.Equal(t, true, out.Data["is_admin"])

	out = h.text(t, 2, "menu")
	require.Equal(t, PromptMenu, out.Prompt)
	require.Equal(t, true, out.Data["has_team"])
	require.Equal(t, false, out.Data["is_admin"])

	require.Equal(t, PromptMyReports, h.text(t, 2, "my_reports").Prompt)
	require.Equal(t, PromptTeamReport, h.text(t, 2, "team_report").Prompt)
	require.Equal(t, PromptWhoRatedMe, h.text(t, 2, "who_rated_me").Prompt)
	require.Equal(t, PromptHelp, h.text(t, 2, "/help").Prompt)
	require.Equal(t, PromptAlreadyTeam, h.text(t, 2, "register_team").Prompt)
	require.Zero(t, h.store.Len())
}

func TestJoinWithUnknownCode(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	team, _ := h.seedTeam(t, 1)

	out := h.text(t, 5, "/start NOPE1234")
	require.Equal(t, PromptInviteNotFound, out.Prompt)
	require.True(t, out.Terminal)

	h.text(t, 5, "join_team")
	out = h.text(t, 5, "nope1234")
	require.Equal(t, StepJoinInviteCode, out.Step)
	require.Equal(t, services.ErrTeamNotFound.Code, out.Problem)

	out = h.text(t, 5, team.InviteCode)
	require.Equal(t, StepJoinUserName, out.Step)
}

func TestInviteLinkToOwnTeamKeepsRole(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	team, students := h.seedTeam(t, 1, 2)

	for _, userID := range []int64{1, 2} {
		out := h.text(t, userID, "/start "+team.InviteCode)
		require.Equal(t, PromptAlreadyTeam, out.Prompt, userID)
		require.Equal(t, services.ErrAlreadyInTeam.Code, out.Problem)
		require.Equal(t, team.TeamName, out.Data["team_name"])
		require.True(t, out.Terminal)
	}
	require.Zero(t, h.store.Len())

	_, membership, err := h.domain.Teams.MembershipOf(context.Background(), students[1].StudentID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, membership.Role)
}

func TestRemovedMemberCannotFinishReport(t *testing.T) {
	h := newHarness(t, services.DefaultDomainConfig())
	ctx := context.Background()
	team, students := h.seedTeam(t, 1, 2, 3)

	require.Equal(t, StepReportSprint, h.text(t, 2, "send_report").Step)
	require.Equal(t, StepReportText, h.button(t, 2, "sprint:1").Step)
	require.Equal(t, StepReportSprint, h.text(t, 3, "send_report").Step)

	require.NoError(t, h.domain.Teams.RemoveMember(ctx, team.TeamID, students[2].StudentID, students[1].StudentID))
	require.NoError(t, h.domain.Teams.RemoveMember(ctx, team.TeamID, students[3].StudentID, students[1].StudentID))

	out := h.text(t, 2, "finished the sprint one backlog")
	require.Equal(t, PromptNotInTeam, out.Prompt)
	require.True(t, out.Terminal)

	out = h.button(t, 3, "sprint:1")
	require.Equal(t, PromptNotInTeam, out.Prompt)
	require.True(t, out.Terminal)

	for _, userID := range []int64{2, 3} {
		reports, err := h.domain.Reports.ListByStudent(ctx, students[userID].StudentID)
		require.NoError(t, err)
		require.Empty(t, reports)
	}
	require.Zero(t, h.store.Len())
}

type unreadableStore struct {
	*session.MemoryStore
	clears int
}

func (s *unreadableStore) Get(context.Context, int64) (session.State, bool, error) {
	return session.State{}, false, errors.New("session backend unavailable")
}

func (s *unreadableStore) Clear(ctx context.Context, userID int64) error {
	s.clears++
	return s.MemoryStore.Clear(ctx, userID)
}

func TestUnreadableSessionIsCleared(t *testing.T) {
	ctx := context.Background()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	domain, err := services.NewDomain(db, services.DefaultDomainConfig())
	require.NoError(t, err)

	store := &unreadableStore{MemoryStore: session.NewMemoryStore()}
	require.NoError(t, store.SetState(ctx, 7, StepReportText.String(), map[string]string{keySprint: "1"}))

	machine, err := NewMachine(domain, store)
	require.NoError(t, err)

	before := promtestutil.ToFloat64(metrics.ActiveDialogs)
	out, err := machine.Handle(ctx, Event{UserID: 7, Kind: EventText, Payload: "finished the sprint one backlog"})
	require.NoError(t, err)
	require.Equal(t, PromptRetryLater, out.Prompt)
	require.Equal(t, "STORE_FAILURE", out.Problem)
	require.True(t, out.Terminal)

	require.Equal(t, 1, store.clears)
	require.Zero(t, store.Len())
	require.Equal(t, before, promtestutil.ToFloat64(metrics.ActiveDialogs))
}

func TestStepNamesRoundTrip(t *testing.T) {
	for step, name := range stepNames {
		parsed, ok := ParseStep(name)
		require.True(t, ok, name)
		require.Equal(t, step, parsed)
		if step != StepIdle {
			_, hasTransition := transitions[step]
			require.True(t, hasTransition, name)
		}
	}
	require.Equal(t, "ReportCreation", StepReportText.Workflow())

	_, ok := ParseStep("Nope:step")
	require.False(t, ok)
}
