package engine

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"kotoba-quiz-service/internal/domain"
)

// State is the lifecycle of a trial.
type State string

const (
	StateIdle     State = "idle"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// noAnswer is the synthetic entry recorded when a round times out.
const noAnswer = "(no answer)"

// RoundView is what a player sees for the current round. Choice modes fill
// Options; construction mode fills Pool with the scrambled tokens.
type RoundView struct {
	Number    int      `json:"number"`
	Total     int      `json:"total"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options,omitempty"`
	Pool      []string `json:"pool,omitempty"`
	Meaning   string   `json:"meaning,omitempty"`
	Hint      string   `json:"hint,omitempty"`
	TicksLeft int      `json:"ticksLeft"`
}

// EventType discriminates engine events.
type EventType string

const (
	EventRound           EventType = "round"
	EventTick            EventType = "tick"
	EventRoundResult     EventType = "roundResult"
	EventSessionFinished EventType = "sessionFinished"
)

// Event is pushed on the engine's event stream as the trial progresses.
type Event struct {
	Type      EventType             `json:"type"`
	Round     *RoundView            `json:"round,omitempty"`
	TicksLeft int                   `json:"ticksLeft,omitempty"`
	Result    *domain.RoundResult   `json:"result,omitempty"`
	Score     int                   `json:"score"`
	Stats     domain.SessionStats   `json:"stats"`
	Session   *domain.SessionResult `json:"session,omitempty"`
}

// Options tunes scheduling for tests. Zero values fall back to production
// defaults (real timers, 1s ticks, 1.5s feedback delay).
type Options struct {
	Scheduler     Scheduler
	TickInterval  time.Duration
	FeedbackDelay time.Duration
	Rand          *rand.Rand
}

// round is the live presentation of one quiz item. Once outcome leaves
// pending it never changes again.
type round struct {
	number    int
	itemIndex int
	item      domain.QuizItem
	options   []string
	ticksLeft int
	outcome   domain.Outcome
}

// Engine drives one 10-round trial for a single mode. The original runs on
// a cooperative UI event loop; here every transition is serialized under
// the engine mutex and each scheduled callback carries the epoch and round
// number it was armed for, so callbacks outlived by a restart or teardown
// become no-ops instead of mutating a session that has moved on.
type Engine struct {
	cfg           ModeConfig
	level         domain.Level
	bank          []domain.QuizItem
	sched         Scheduler
	tickInterval  time.Duration
	feedbackDelay time.Duration
	rnd           *rand.Rand

	mu            sync.Mutex
	state         State
	epoch         int
	current       *round
	score         int
	stats         domain.SessionStats
	results       []domain.RoundResult
	used          map[int]struct{}
	cancelTick    CancelFunc
	cancelAdvance CancelFunc
	events        chan Event
	closed        bool
}

// New builds an engine for one mode and level over the given bank with
// production timing.
func New(mode domain.Mode, level domain.Level, bank domain.QuestionBank) (*Engine, error) {
	return NewWithOptions(mode, level, bank, Options{})
}

// NewWithOptions is New with injectable scheduling, used by tests to drive
// the countdown deterministically.
func NewWithOptions(mode domain.Mode, level domain.Level, bank domain.QuestionBank, opts Options) (*Engine, error) {
	cfg, err := ConfigFor(mode)
	if err != nil {
		return nil, err
	}
	if len(bank.Items) == 0 {
		return nil, domain.ErrEmptyBank
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = NewScheduler()
	}
	tick := opts.TickInterval
	if tick == 0 {
		tick = time.Second
	}
	delay := opts.FeedbackDelay
	if delay == 0 {
		delay = 1500 * time.Millisecond
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Engine{
		cfg:           cfg,
		level:         level,
		bank:          bank.Items,
		sched:         sched,
		tickInterval:  tick,
		feedbackDelay: delay,
		rnd:           rnd,
		state:         StateIdle,
		used:          make(map[int]struct{}),
		events:        make(chan Event, 64),
	}, nil
}

// Events is the engine's outbound stream. The channel is closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Mode returns the configured quiz variant.
func (e *Engine) Mode() domain.Mode { return e.cfg.Mode }

// Level returns the configured difficulty level.
func (e *Engine) Level() domain.Level { return e.level }

// Start begins a fresh trial. Valid from idle or finished; restarting
// cancels any live countdown before arming a new one, so a rapid restart
// can never leave two timers running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return domain.ErrNotPlaying
	}
	if e.state == StatePlaying {
		return nil
	}

	e.cancelTimersLocked()
	e.epoch++
	e.state = StatePlaying
	e.score = 0
	e.stats = domain.SessionStats{}
	e.results = nil
	e.used = make(map[int]struct{})
	e.beginRoundLocked(1)
	return nil
}

// SubmitOption answers the current round with the option at the given
// display index (0-3). Out-of-range indices and submissions on an already
// resolved round are ignored, matching the original's tolerance of input
// races.
func (e *Engine) SubmitOption(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked() || !e.cfg.choice() {
		return
	}
	if index < 0 || index >= len(e.current.options) {
		return
	}
	e.resolveLocked(Answer{Choice: e.current.options[index]})
}

// SubmitTokens answers a construction round with the assembled token
// sequence. Grading is exact positional equality against the canonical
// sentence.
func (e *Engine) SubmitTokens(tokens []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked() || e.cfg.choice() {
		return
	}
	e.resolveLocked(Answer{Tokens: tokens})
}

// Submit answers the current round directly. Mostly useful in tests; the
// transport goes through SubmitOption/SubmitTokens.
func (e *Engine) Submit(answer Answer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptingLocked() {
		return
	}
	e.resolveLocked(answer)
}

// Close tears the engine down: all timers are cancelled, late callbacks
// die against the bumped epoch, and the event stream is closed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.cancelTimersLocked()
	e.epoch++
	e.closed = true
	close(e.events)
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Score reports the running score (one point per correct round).
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Stats reports the running session statistics.
func (e *Engine) Stats() domain.SessionStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Results returns the recorded outcomes so far, in round order.
func (e *Engine) Results() []domain.RoundResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.RoundResult, len(e.results))
	copy(out, e.results)
	return out
}

func (e *Engine) acceptingLocked() bool {
	return !e.closed && e.state == StatePlaying && e.current != nil && e.current.outcome == domain.OutcomePending
}

func (e *Engine) cancelTimersLocked() {
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	if e.cancelAdvance != nil {
		e.cancelAdvance()
		e.cancelAdvance = nil
	}
}

// beginRoundLocked draws the next item, builds its presentation, and arms
// the countdown.
func (e *Engine) beginRoundLocked(number int) {
	idx := e.selectItemLocked()
	item := e.bank[idx]
	e.current = &round{
		number:    number,
		itemIndex: idx,
		item:      item,
		options:   e.cfg.buildOptions(item, e.rnd),
		ticksLeft: e.cfg.TimerTicks,
		outcome:   domain.OutcomePending,
	}

	view := &RoundView{
		Number:    number,
		Total:     RoundsPerSession,
		Prompt:    item.Prompt,
		Meaning:   item.Meaning,
		Hint:      item.Hint,
		TicksLeft: e.current.ticksLeft,
	}
	if e.cfg.choice() {
		view.Options = e.current.options
	} else {
		view.Pool = e.current.options
	}
	e.emitLocked(Event{Type: EventRound, Round: view, Score: e.score, Stats: e.stats})
	e.armTickLocked()
}

// selectItemLocked draws a random item not yet used this session. When the
// bank is exhausted the exclusion set resets and every item becomes
// eligible again, so a small bank never stalls the engine.
func (e *Engine) selectItemLocked() int {
	if len(e.used) >= len(e.bank) {
		e.used = make(map[int]struct{})
	}
	candidates := make([]int, 0, len(e.bank)-len(e.used))
	for i := range e.bank {
		if _, taken := e.used[i]; !taken {
			candidates = append(candidates, i)
		}
	}
	idx := candidates[e.rnd.Intn(len(candidates))]
	e.used[idx] = struct{}{}
	return idx
}

func (e *Engine) armTickLocked() {
	epoch, number := e.epoch, e.current.number
	e.cancelTick = e.sched.AfterFunc(e.tickInterval, func() {
		e.onTick(epoch, number)
	})
}

// onTick decrements the countdown. Reaching zero is the only source of a
// timeout. A tick armed for an earlier epoch or round is stale and ignored.
func (e *Engine) onTick(epoch, number int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.staleLocked(epoch, number) || e.current.outcome != domain.OutcomePending {
		return
	}

	e.current.ticksLeft--
	if e.current.ticksLeft <= 0 {
		e.timeoutLocked()
		return
	}
	e.emitLocked(Event{Type: EventTick, TicksLeft: e.current.ticksLeft, Score: e.score, Stats: e.stats})
	e.armTickLocked()
}

func (e *Engine) staleLocked(epoch, number int) bool {
	return e.closed || epoch != e.epoch || e.state != StatePlaying || e.current == nil || e.current.number != number
}

// resolveLocked grades the answer and records the round outcome. The
// caller has already verified the round is still pending, so whichever of
// answer submission and timeout runs first wins; the loser no-ops.
func (e *Engine) resolveLocked(answer Answer) {
	e.cancelTimersLocked()

	given := answer.Choice
	if !e.cfg.choice() {
		given = strings.Join(answer.Tokens, "")
	}

	outcome := domain.OutcomeIncorrect
	if e.cfg.grade(e.current.item, answer) {
		outcome = domain.OutcomeCorrect
	}
	e.recordLocked(outcome, given)
}

// timeoutLocked resolves the round as timed-out, which scores and combos
// exactly like an incorrect answer.
func (e *Engine) timeoutLocked() {
	e.cancelTimersLocked()
	e.recordLocked(domain.OutcomeTimedOut, noAnswer)
}

func (e *Engine) recordLocked(outcome domain.Outcome, given string) {
	e.current.outcome = outcome

	e.stats.Answered++
	if outcome == domain.OutcomeCorrect {
		e.score++
		e.stats.Correct++
		e.stats.CurrentStreak++
		e.stats.Combo++
		if e.stats.CurrentStreak > e.stats.BestStreak {
			e.stats.BestStreak = e.stats.CurrentStreak
		}
	} else {
		e.stats.CurrentStreak = 0
		e.stats.Combo = 0
	}

	result := domain.RoundResult{
		Number:  e.current.number,
		Prompt:  e.current.item.Prompt,
		Answer:  e.cfg.correctText(e.current.item),
		Given:   given,
		Outcome: outcome,
	}
	e.results = append(e.results, result)
	e.emitLocked(Event{Type: EventRoundResult, Result: &result, Score: e.score, Stats: e.stats})

	// The pause lets the player see the correct/incorrect feedback before
	// the next prompt replaces it.
	epoch, number := e.epoch, e.current.number
	e.cancelAdvance = e.sched.AfterFunc(e.feedbackDelay, func() {
		e.advance(epoch, number)
	})
}

// advance moves to the next round, or finishes the trial after the tenth.
func (e *Engine) advance(epoch, number int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.staleLocked(epoch, number) || e.current.outcome == domain.OutcomePending {
		return
	}
	e.cancelAdvance = nil

	if number >= RoundsPerSession {
		e.state = StateFinished
		e.emitLocked(Event{
			Type:    EventSessionFinished,
			Score:   e.score,
			Stats:   e.stats,
			Session: e.sessionResultLocked(),
		})
		return
	}
	e.beginRoundLocked(number + 1)
}

func (e *Engine) sessionResultLocked() *domain.SessionResult {
	mistakes := make([]domain.RoundResult, 0)
	for _, r := range e.results {
		if r.Outcome != domain.OutcomeCorrect {
			mistakes = append(mistakes, r)
		}
	}
	return &domain.SessionResult{
		Mode:     e.cfg.Mode,
		Level:    e.level,
		Category: domain.Category(e.level, e.cfg.Mode),
		Score:    e.score,
		Total:    RoundsPerSession,
		Stats:    e.stats,
		Mistakes: mistakes,
	}
}

// emitLocked pushes an event without ever blocking the engine: when the
// buffer is full the oldest event is dropped so a slow consumer cannot
// wedge the timers.
func (e *Engine) emitLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}
