package dialog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/internal/session"
	apperrors "github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/logger"
	"github.com/studhelper/studhelper/pkg/metrics"
)

const (
	outcomeAdvanced  = "advanced"
	outcomeReprompt  = "reprompt"
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// Machine routes inbound events through the per-user dialog workflows.
type Machine struct {
	domain    *services.Domain
	store     session.Store
	locker    *session.Locker
	log       *zap.Logger
	host      string
	botHandle string
}

// Option customises a Machine.
type Option func(*Machine)

// WithInviteLink sets the host and bot handle used to build invite deep links.
func WithInviteLink(host, botHandle string) Option {
	return func(m *Machine) {
		m.host = host
		m.botHandle = botHandle
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// WithLocker shares a Locker between machines.
func WithLocker(locker *session.Locker) Option {
	return func(m *Machine) {
		if locker != nil {
			m.locker = locker
		}
	}
}

// NewMachine constructs a dialog machine over the domain services and a session store.
func NewMachine(domain *services.Domain, store session.Store, opts ...Option) (*Machine, error) {
	if domain == nil {
		return nil, errors.New("dialog: domain is required")
	}
	if store == nil {
		return nil, errors.New("dialog: session store is required")
	}

	m := &Machine{
		domain: domain,
		store:  store,
		locker: session.NewLocker(),
		log:    logger.WithModule("dialog"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// request is the input a step handler works on.
type request struct {
	event Event
	input string
	state session.State
	step  Step
}

func (r request) value(key string) string {
	return r.state.Value(key)
}

// result is a handler's decision: the outcome to return and how the session changes.
type result struct {
	outcome Outcome
	next    Step
	data    map[string]string
	reset   bool
	keep    bool
	label   string
}

type handler func(ctx context.Context, m *Machine, req request) (result, error)

// advance moves to next, merging data into the session.
func advance(next Step, prompt PromptKey, data map[string]string, promptData map[string]any) result {
	return result{
		outcome: Outcome{Prompt: prompt, Data: promptData},
		next:    next,
		data:    data,
		label:   outcomeAdvanced,
	}
}

// restart moves to next with data replacing whatever the session held.
func restart(next Step, prompt PromptKey, data map[string]string, promptData map[string]any) result {
	res := advance(next, prompt, data, promptData)
	res.reset = true
	return res
}

// finish ends the dialog and clears the session.
func finish(prompt PromptKey, promptData map[string]any) result {
	return result{
		outcome: Outcome{Prompt: prompt, Data: promptData},
		next:    StepIdle,
		label:   outcomeCompleted,
	}
}

// finishWithProblem ends the dialog reporting why nothing happened.
func finishWithProblem(prompt PromptKey, problem string, promptData map[string]any) result {
	res := finish(prompt, promptData)
	res.outcome.Problem = problem
	res.label = outcomeFailed
	return res
}

// reprompt repeats the current step without touching the session.
func reprompt(req request, problem string, promptData map[string]any) result {
	prompt := PromptMenu
	if t, ok := transitions[req.step]; ok {
		prompt = t.prompt
	}
	return result{
		outcome: Outcome{Prompt: prompt, Data: promptData, Problem: problem},
		next:    req.step,
		keep:    true,
		label:   outcomeReprompt,
	}
}

// Handle processes one event for its user. Events for the same user are serialised.
func (m *Machine) Handle(ctx context.Context, event Event) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if event.UserID <= 0 {
		return Outcome{}, apperrors.NewBadRequest("user id is required")
	}

	unlock := m.locker.Lock(event.UserID)
	defer unlock()

	req := request{event: event, input: event.payload(), step: StepIdle}

	state, found, err := m.store.Get(ctx, event.UserID)
	if err != nil {
		m.log.Error("load dialog session", zap.Int64("user_id", event.UserID), zap.Error(err))
		// Whatever is stored is unreadable; drop it so the next event starts from the menu.
		if clearErr := m.store.Clear(ctx, event.UserID); clearErr != nil {
			m.log.Error("clear dialog session", zap.Int64("user_id", event.UserID), zap.Error(clearErr))
		}
		res := m.failure(req, err)
		return m.commit(ctx, req, res), nil
	}
	if found {
		step, ok := ParseStep(state.Step)
		if !ok {
			m.log.Warn("discarding unknown dialog step", zap.Int64("user_id", event.UserID), zap.String("step", state.Step))
			if err := m.store.Clear(ctx, event.UserID); err != nil {
				m.log.Error("clear dialog session", zap.Int64("user_id", event.UserID), zap.Error(err))
			} else {
				metrics.ActiveDialogs.Dec()
			}
		} else {
			req.state = state
			req.step = step
		}
	}

	m.log.Debug("dialog event",
		zap.Int64("user_id", event.UserID),
		zap.String("step", req.step.String()),
		zap.String("kind", string(event.Kind)),
	)

	res := m.dispatch(ctx, req)
	return m.commit(ctx, req, res), nil
}

func (m *Machine) dispatch(ctx context.Context, req request) result {
	if isCommand(req.input, CommandCancel) {
		res := finish(PromptCancelled, nil)
		res.label = outcomeCancelled
		return res
	}
	if arg, ok := startArgument(req.input); ok {
		return m.run(ctx, req, func(ctx context.Context, m *Machine, req request) (result, error) {
			return m.start(ctx, req, arg)
		})
	}
	if req.step == StepIdle {
		return m.run(ctx, req, handleIdle)
	}

	t, ok := transitions[req.step]
	if !ok {
		return finish(PromptMenu, nil)
	}
	if isCommand(req.input, CommandBack) {
		if t.back == nil {
			return reprompt(req, ProblemBackUnavailable, nil)
		}
		return m.run(ctx, req, t.back)
	}
	if req.event.Kind != t.accepts {
		return reprompt(req, ProblemUnexpectedKind, nil)
	}
	return m.run(ctx, req, t.handle)
}

func (m *Machine) run(ctx context.Context, req request, h handler) result {
	res, err := h(ctx, m, req)
	if err != nil {
		return m.failure(req, err)
	}
	return res
}

// failure maps a domain error onto the dialog: bad input re-prompts, known refusals end the dialog
// with a message, anything else is a store failure that clears the session.
func (m *Machine) failure(req request, err error) result {
	appErr := apperrors.FromError(err)
	fields := []zap.Field{
		zap.Int64("user_id", req.event.UserID),
		zap.String("step", req.step.String()),
		zap.String("code", appErr.Code),
		zap.Error(err),
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindInvalidArgument:
		m.log.Debug("dialog input rejected", fields...)
		return reprompt(req, appErr.Code, nil)
	case apperrors.KindNotFound, apperrors.KindPermissionDenied, apperrors.KindConflict:
		m.log.Warn("dialog operation refused", fields...)
		return finishWithProblem(PromptError, appErr.Code, nil)
	default:
		m.log.Error("dialog operation failed", fields...)
		return finishWithProblem(PromptRetryLater, "STORE_FAILURE", nil)
	}
}

// commit persists the session change described by res and finalises the outcome.
func (m *Machine) commit(ctx context.Context, req request, res result) Outcome {
	userID := req.event.UserID
	next := res.next

	var err error
	switch {
	case res.keep:
		next = req.step
	case next == StepIdle:
		if req.step != StepIdle || len(req.state.Data) > 0 {
			err = m.store.Clear(ctx, userID)
		}
	case next == req.step && !res.reset:
		if len(res.data) > 0 {
			err = m.store.Update(ctx, userID, res.data)
		}
	default:
		data := res.data
		if !res.reset {
			data = mergeData(req.state.Data, res.data)
		}
		err = m.store.SetState(ctx, userID, next.String(), data)
	}

	if err != nil {
		m.log.Error("save dialog session", zap.Int64("user_id", userID), zap.String("step", next.String()), zap.Error(err))
		if clearErr := m.store.Clear(ctx, userID); clearErr != nil {
			m.log.Error("clear dialog session", zap.Int64("user_id", userID), zap.Error(clearErr))
		}
		res = finishWithProblem(PromptRetryLater, "STORE_FAILURE", nil)
		next = StepIdle
	}

	switch {
	case req.step == StepIdle && next != StepIdle:
		metrics.ActiveDialogs.Inc()
	case req.step != StepIdle && next == StepIdle:
		metrics.ActiveDialogs.Dec()
	}

	workflow := req.step.Workflow()
	if req.step == StepIdle {
		workflow = next.Workflow()
	}
	metrics.DialogEvents.WithLabelValues(workflow, res.label).Inc()

	out := res.outcome
	out.Step = next
	out.StepName = next.String()
	out.Terminal = next == StepIdle
	return out
}

func mergeData(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func errorCode(err error) string {
	if appErr := apperrors.FromError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
