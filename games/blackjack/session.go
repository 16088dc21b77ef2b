/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	DefaultRevealDelay = 1500 * time.Millisecond
	MaxRevealDelay     = time.Minute
	DefaultTargetScore = 100
)

// Headers are the column labels of the word source, shown by the client.
type Headers struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Sheet is what a Provider returns: the words plus their column labels.
type Sheet struct {
	Words   []Word  `json:"words"`
	Headers Headers `json:"headers"`
}

// Provider loads the word list for a game from source, usually a URL.
type Provider interface {
	Fetch(ctx context.Context, source string) (Sheet, error)
}

// Scheduler runs fn once after d. Implementations must not run fn inline.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

type SessionPhase string

const (
	PhaseSetup       SessionPhase = "setup"
	PhaseLoading     SessionPhase = "loading"
	PhaseUnavailable SessionPhase = "unavailable"
	PhasePlaying     SessionPhase = "playing"
)

// Setup is the pre-game configuration entered on the start screen.
type Setup struct {
	Teams       []string `json:"teams"`
	TargetScore int      `json:"target_score"`
	Source      string   `json:"source"`
}

type Options struct {
	Provider    Provider
	Scheduler   Scheduler
	RevealDelay time.Duration
	Logger      zerolog.Logger

	// OnUpdate is called after every state change, without the session lock held.
	OnUpdate func()
}

// Session is the single entry point the presentation layer talks to. It owns
// the word pool, roster, history and engine of one game.
type Session struct {
	mu sync.Mutex

	provider  Provider
	scheduler Scheduler
	delay     time.Duration
	log       zerolog.Logger
	onUpdate  func()

	phase   SessionPhase
	setup   Setup
	loadErr error
	headers Headers

	pool    *WordPool
	roster  *Roster
	history *History
	engine  *Engine

	// bumped by Reset so stale reveal timers do nothing
	generation uint64
}

func NewSession(opts Options) *Session {
	s := &Session{
		provider:  opts.Provider,
		scheduler: opts.Scheduler,
		delay:     opts.RevealDelay,
		log:       opts.Logger,
		onUpdate:  opts.OnUpdate,
		phase:     PhaseSetup,
	}

	if s.scheduler == nil {
		s.scheduler = timerScheduler{}
	}
	if s.delay <= 0 {
		s.delay = DefaultRevealDelay
	}
	if s.delay > MaxRevealDelay {
		s.delay = MaxRevealDelay
	}

	s.clearGameLocked()

	return s
}

func (s *Session) clearGameLocked() {
	s.pool = NewWordPool()
	s.roster = NewRoster()
	s.history = NewHistory()
	s.engine = nil
	s.headers = Headers{}
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func normalizeSetup(setup Setup) Setup {
	teams := make([]string, len(setup.Teams))
	for i, name := range setup.Teams {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Team %d", i+1)
		}
		teams[i] = name
	}
	setup.Teams = teams
	setup.Source = strings.TrimSpace(setup.Source)

	return setup
}

// Start validates the setup, fetches the word list and begins a game. The
// fetch happens without the lock held; commands are rejected meanwhile.
// A failed fetch leaves the session unavailable until Retry or Reset.
func (s *Session) Start(ctx context.Context, setup Setup) error {
	setup = normalizeSetup(setup)

	s.mu.Lock()
	if s.phase != PhaseSetup && s.phase != PhaseUnavailable {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidMove, phase)
	}
	if len(setup.Teams) < MinTeams || len(setup.Teams) > MaxTeams {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d, want %d-%d", ErrInvalidTeamCount, len(setup.Teams), MinTeams, MaxTeams)
	}
	if err := validTarget(setup.TargetScore); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := checkUniqueNames(setup.Teams); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.provider == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no word provider configured", ErrDataUnavailable)
	}

	s.setup = setup
	s.phase = PhaseLoading
	s.loadErr = nil
	gen := s.generation
	s.mu.Unlock()

	s.notify()

	sheet, err := s.provider.Fetch(ctx, setup.Source)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return fmt.Errorf("%w: game was reset while loading", ErrNotPlaying)
	}
	err = s.beginLocked(sheet, err)
	s.mu.Unlock()

	s.notify()

	return err
}

func (s *Session) beginLocked(sheet Sheet, fetchErr error) error {
	fail := func(err error) error {
		s.clearGameLocked()
		s.phase = PhaseUnavailable
		s.loadErr = err
		s.log.Warn().Err(err).Str("source", s.setup.Source).Msg("word data unavailable")
		return err
	}

	if fetchErr != nil {
		return fail(fmt.Errorf("%w: %w", ErrDataUnavailable, fetchErr))
	}

	pool, roster, history := NewWordPool(), NewRoster(), NewHistory()

	if err := pool.Load(sheet.Words); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrDataUnavailable, err))
	}
	if err := roster.Initialize(s.setup.Teams); err != nil {
		return fail(err)
	}

	engine, err := NewEngine(pool, roster, history, s.setup.TargetScore)
	if err != nil {
		return fail(err)
	}

	s.pool, s.roster, s.history, s.engine = pool, roster, history, engine
	s.headers = sheet.Headers
	s.phase = PhasePlaying

	s.log.Info().
		Int("teams", roster.Len()).
		Int("words", pool.Len()).
		Int("target", s.setup.TargetScore).
		Msg("game started")

	return nil
}

// Retry repeats the last Start after a failed load.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseUnavailable {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: nothing to retry while %s", ErrInvalidMove, phase)
	}
	setup := s.setup
	s.mu.Unlock()

	return s.Start(ctx, setup)
}

// Reset discards the current game and returns to setup. Any reveal delay
// still running completes into nothing.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.clearGameLocked()
	s.phase = PhaseSetup
	s.loadErr = nil
	s.mu.Unlock()

	s.log.Info().Msg("game reset")
	s.notify()
}

// playing runs fn against the engine under the lock, if a game is running.
func (s *Session) playing(fn func(e *Engine) error) error {
	s.mu.Lock()
	if s.phase != PhasePlaying || s.engine == nil {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrNotPlaying, phase)
	}
	err := fn(s.engine)
	s.mu.Unlock()

	if err == nil {
		s.notify()
	}

	return err
}

func (s *Session) SelectWord(name string) error {
	return s.playing(func(e *Engine) error {
		return e.SelectWord(name)
	})
}

func (s *Session) Confirm() (HistoryEntry, error) {
	var entry HistoryEntry

	err := s.playing(func(e *Engine) error {
		var err error
		entry, err = e.Confirm()
		if err != nil {
			return err
		}
		s.log.Info().
			Str("team", entry.Team).
			Str("word", entry.Word).
			Int("value", entry.Value).
			Int("score", entry.Score).
			Bool("eliminated", entry.Eliminated).
			Int("round", entry.Round).
			Msg("selection confirmed")
		s.scheduleRevealLocked()
		return nil
	})

	return entry, err
}

func (s *Session) Skip() (HistoryEntry, error) {
	var entry HistoryEntry

	err := s.playing(func(e *Engine) error {
		var err error
		entry, err = e.Skip()
		if err != nil {
			return err
		}
		s.log.Info().Str("team", entry.Team).Int("round", entry.Round).Msg("turn skipped")
		s.scheduleRevealLocked()
		return nil
	})

	return entry, err
}

func (s *Session) scheduleRevealLocked() {
	gen := s.generation
	s.scheduler.AfterFunc(s.delay, func() {
		s.completeReveal(gen)
	})
}

func (s *Session) completeReveal(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.engine == nil {
		s.mu.Unlock()
		return
	}

	if err := s.engine.CompleteReveal(); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("reveal completed out of order")
		return
	}

	if s.engine.Phase() == GameOver {
		o := s.engine.Outcome()
		ev := s.log.Info().Str("outcome", o.Kind.String())
		if o.Winner != nil {
			ev = ev.Str("winner", o.Winner.Name)
		}
		ev.Msg("game over")
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Session) SetTargetScore(v int) error {
	return s.playing(func(e *Engine) error {
		return e.SetTargetScore(v)
	})
}

func (s *Session) Finish() error {
	return s.playing(func(e *Engine) error {
		return e.Finish()
	})
}

func (s *Session) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// LoadError returns why the last Start failed, if the session is unavailable.
func (s *Session) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadErr
}

func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Entries()
}

func (s *Session) Teams() []Team {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roster.Teams()
}

func (s *Session) RemainingWords() []Word {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Remaining()
}

// CurrentTeam returns the index of the team whose turn it is, or -1 when no
// game is running or it has ended.
func (s *Session) CurrentTeam() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil || s.engine.Phase() == GameOver {
		return -1
	}

	return s.engine.Active()
}

func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return Outcome{Kind: OutcomeNone}
	}

	return s.engine.Outcome()
}

func (s *Session) State() (TurnState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return TurnState{}, false
	}

	return s.engine.State(), true
}

// Suggest offers the closest remaining word name for a mistyped selection.
func (s *Session) Suggest(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Suggest(name)
}

// WordView is a word as the board shows it: the value stays hidden until
// the word has been used.
type WordView struct {
	Name  string `json:"name"`
	Value *int   `json:"value,omitempty"`
	Used  bool   `json:"used"`
}

// Snapshot is the read model sent to the presentation layer.
type Snapshot struct {
	Phase       SessionPhase   `json:"phase"`
	Error       string         `json:"error,omitempty"`
	Setup       Setup          `json:"setup"`
	Headers     Headers        `json:"headers"`
	TargetScore int            `json:"target_score"`
	Teams       []Team         `json:"teams"`
	Turn        *TurnState     `json:"turn,omitempty"`
	Words       []WordView     `json:"words"`
	Remaining   int            `json:"remaining"`
	Exhausted   bool           `json:"exhausted"`
	History     []HistoryEntry `json:"history"`
	Outcome     Outcome        `json:"outcome"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:       s.phase,
		Setup:       s.setup,
		Headers:     s.headers,
		TargetScore: s.setup.TargetScore,
		Teams:       s.roster.Teams(),
		Remaining:   len(s.pool.Remaining()),
		Exhausted:   s.pool.Exhausted(),
		History:     s.history.Entries(),
		Outcome:     Outcome{Kind: OutcomeNone},
	}

	if s.loadErr != nil {
		snap.Error = s.loadErr.Error()
	}

	snap.Words = lo.Map(s.pool.words, func(w Word, _ int) WordView {
		v := WordView{Name: w.Name, Used: s.pool.IsConsumed(w.Name)}
		if v.Used {
			value := w.Value
			v.Value = &value
		}
		return v
	})

	if s.engine != nil {
		st := s.engine.State()
		snap.Turn = &st
		snap.TargetScore = s.engine.TargetScore()
		snap.Outcome = s.engine.Outcome()
	}

	return snap
}

// IsMoveError reports whether err is a rejected command rather than a data
// or setup problem.
func IsMoveError(err error) bool {
	return errors.Is(err, ErrInvalidMove) ||
		errors.Is(err, ErrInvalidTargetScore) ||
		errors.Is(err, ErrNotPlaying)
}
