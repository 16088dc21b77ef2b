/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import (
	"fmt"
)

type Phase int

const (
	AwaitingSelection Phase = iota
	SelectionPending
	Resolving
	GameOver
)

func (p Phase) String() string {
	switch p {
	case AwaitingSelection:
		return "awaiting_selection"
	case SelectionPending:
		return "selection_pending"
	case Resolving:
		return "resolving"
	case GameOver:
		return "game_over"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{AwaitingSelection, SelectionPending, Resolving, GameOver} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeWinner
	OutcomeDraw
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWinner:
		return "winner"
	case OutcomeDraw:
		return "draw"
	default:
		return "none"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for _, candidate := range []OutcomeKind{OutcomeNone, OutcomeWinner, OutcomeDraw} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Winner *Team       `json:"winner,omitempty"`
}

// endReason records why the game stopped, so the outcome can be derived
// from the roster on demand.
type endReason int

const (
	notEnded endReason = iota
	lastStanding
	allOut
	finishedEarly
)

type TurnState struct {
	Phase   Phase `json:"phase"`
	Active  int   `json:"active"`
	Round   int   `json:"round"`
	Pending *Word `json:"pending,omitempty"`
	Locked  bool  `json:"locked"`
}

// Engine is the turn state machine. It is not safe for concurrent use.
type Engine struct {
	pool    *WordPool
	roster  *Roster
	history *History

	target  int
	active  int
	round   int
	pending *Word
	phase   Phase

	// set while Resolving
	resolvedOut bool

	ended endReason
}

func NewEngine(pool *WordPool, roster *Roster, history *History, target int) (*Engine, error) {
	if err := validTarget(target); err != nil {
		return nil, err
	}
	if pool.Len() == 0 {
		return nil, ErrEmptyPool
	}
	if roster.Len() < MinTeams {
		return nil, fmt.Errorf("%w: roster is empty", ErrInvalidTeamCount)
	}

	return &Engine{
		pool:    pool,
		roster:  roster,
		history: history,
		target:  target,
		round:   1,
		phase:   AwaitingSelection,
	}, nil
}

func validTarget(v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTargetScore, v)
	}
	return nil
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) Locked() bool {
	return e.phase == Resolving
}

func (e *Engine) TargetScore() int {
	return e.target
}

func (e *Engine) Round() int {
	return e.round
}

// Active returns the index of the team whose turn it is.
func (e *Engine) Active() int {
	return e.active
}

func (e *Engine) State() TurnState {
	s := TurnState{
		Phase:  e.phase,
		Active: e.active,
		Round:  e.round,
		Locked: e.Locked(),
	}
	if e.pending != nil {
		w := *e.pending
		s.Pending = &w
	}
	return s
}

func (e *Engine) reject(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidMove, action, e.phase)
}

func (e *Engine) SelectWord(name string) error {
	if e.phase != AwaitingSelection && e.phase != SelectionPending {
		return e.reject("select a word")
	}

	team, err := e.roster.Team(e.active)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMove, err)
	}
	if team.Out {
		return fmt.Errorf("%w: team %q is out", ErrInvalidMove, team.Name)
	}

	w, ok := e.pool.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidMove, ErrUnknownWord, name)
	}
	if e.pool.IsConsumed(name) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidMove, ErrAlreadyConsumed, name)
	}

	e.pending = &w
	e.phase = SelectionPending

	return nil
}

func (e *Engine) Confirm() (HistoryEntry, error) {
	if e.phase != SelectionPending || e.pending == nil {
		return HistoryEntry{}, e.reject("confirm")
	}

	w := *e.pending

	team, err := e.roster.Team(e.active)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("%w: %w", ErrInvalidMove, err)
	}
	if e.pool.IsConsumed(w.Name) {
		return HistoryEntry{}, fmt.Errorf("%w: %w: %q", ErrInvalidMove, ErrAlreadyConsumed, w.Name)
	}

	eliminated := team.Score+w.Value > e.target

	// Everything below is checked above; the word is consumed last so a
	// failure leaves the pool untouched.
	score, err := e.roster.ApplyScore(e.active, w.Value)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("%w: %w", ErrInvalidMove, err)
	}
	if eliminated {
		if err := e.roster.SetOut(e.active, true); err != nil {
			return HistoryEntry{}, fmt.Errorf("%w: %w", ErrInvalidMove, err)
		}
	}
	if err := e.pool.Consume(w.Name); err != nil {
		return HistoryEntry{}, fmt.Errorf("%w: %w", ErrInvalidMove, err)
	}

	entry := e.history.append(HistoryEntry{
		Team:       team.Name,
		Word:       w.Name,
		Value:      w.Value,
		Score:      score,
		Eliminated: eliminated,
		Round:      e.round,
	})

	e.pending = nil
	e.resolvedOut = eliminated
	e.phase = Resolving

	return entry, nil
}

func (e *Engine) Skip() (HistoryEntry, error) {
	if e.phase != AwaitingSelection {
		return HistoryEntry{}, e.reject("skip")
	}

	team, err := e.roster.Team(e.active)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("%w: %w", ErrInvalidMove, err)
	}
	if team.Out {
		return HistoryEntry{}, fmt.Errorf("%w: team %q is out", ErrInvalidMove, team.Name)
	}

	entry := e.history.append(HistoryEntry{
		Team:    team.Name,
		Word:    SkipMarker,
		Score:   team.Score,
		Round:   e.round,
		Skipped: true,
	})

	e.resolvedOut = false
	e.phase = Resolving

	return entry, nil
}

// CompleteReveal ends the reveal delay of the move being resolved and either
// hands the turn to the next team or ends the game.
func (e *Engine) CompleteReveal() error {
	if e.phase != Resolving {
		return e.reject("complete a reveal")
	}

	out := e.resolvedOut
	e.resolvedOut = false

	if out {
		switch len(e.roster.ActiveCandidates()) {
		case 0:
			e.end(allOut)
			return nil
		case 1:
			e.end(lastStanding)
			return nil
		}
	}

	e.advance()
	e.phase = AwaitingSelection

	return nil
}

// advance moves the turn to the next team still in the game. A round is
// counted every time the scan wraps past the end of the roster.
func (e *Engine) advance() {
	n := e.roster.Len()
	start := e.active
	next := start

	for i := 1; i <= n; i++ {
		candidate := (start + i) % n
		if t, _ := e.roster.Team(candidate); !t.Out {
			next = candidate
			break
		}
	}

	if next <= start {
		e.round++
	}

	e.active = next
}

func (e *Engine) end(reason endReason) {
	e.ended = reason
	e.pending = nil
	e.phase = GameOver
}

func (e *Engine) SetTargetScore(v int) error {
	if e.phase == Resolving || e.phase == GameOver {
		return e.reject("change the target score")
	}
	if err := validTarget(v); err != nil {
		return err
	}

	e.target = v

	return nil
}

// Finish ends the game on request, typically once the pool has run dry. The
// surviving team closest to the target wins; a shared best score is a draw.
func (e *Engine) Finish() error {
	if e.phase != AwaitingSelection && e.phase != SelectionPending {
		return e.reject("finish the game")
	}

	e.end(finishedEarly)

	return nil
}

func (e *Engine) Outcome() Outcome {
	if e.phase != GameOver {
		return Outcome{Kind: OutcomeNone}
	}

	if w := e.roster.Winner(); w != nil && e.roster.Len() > 1 {
		return Outcome{Kind: OutcomeWinner, Winner: w}
	}

	switch e.ended {
	case finishedEarly:
		if l := e.roster.Leader(e.target); l != nil {
			return Outcome{Kind: OutcomeWinner, Winner: l}
		}
	}

	return Outcome{Kind: OutcomeDraw}
}
