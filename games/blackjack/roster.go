/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	MinTeams = 1
	MaxTeams = 4
)

type Team struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Out   bool   `json:"out"`
}

// Roster holds the teams of one game in turn order.
type Roster struct {
	teams []Team
}

func NewRoster() *Roster {
	return &Roster{}
}

func (r *Roster) Initialize(names []string) error {
	if len(names) < MinTeams || len(names) > MaxTeams {
		return fmt.Errorf("%w: got %d, want %d-%d", ErrInvalidTeamCount, len(names), MinTeams, MaxTeams)
	}
	if err := checkUniqueNames(names); err != nil {
		return err
	}

	r.teams = lo.Map(names, func(name string, _ int) Team {
		return Team{Name: name}
	})

	return nil
}

// checkUniqueNames rejects names that differ only in case, since history
// entries refer to teams by name.
func checkUniqueNames(names []string) error {
	dups := lo.FindDuplicatesBy(names, strings.ToLower)
	if len(dups) > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateTeam, dups[0])
	}
	return nil
}

func (r *Roster) Len() int {
	return len(r.teams)
}

func (r *Roster) checkIndex(index int) error {
	if index < 0 || index >= len(r.teams) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return nil
}

func (r *Roster) Team(index int) (Team, error) {
	if err := r.checkIndex(index); err != nil {
		return Team{}, err
	}
	return r.teams[index], nil
}

// Teams returns a copy of the roster.
func (r *Roster) Teams() []Team {
	return append(make([]Team, 0, len(r.teams)), r.teams...)
}

// ApplyScore adds delta to the team's score and returns the new score.
// It never changes the team's elimination flag.
func (r *Roster) ApplyScore(index, delta int) (int, error) {
	if err := r.checkIndex(index); err != nil {
		return 0, err
	}

	r.teams[index].Score += delta

	return r.teams[index].Score, nil
}

// SetOut flags a team as eliminated. Elimination is permanent, so clearing
// the flag on an eliminated team is ignored.
func (r *Roster) SetOut(index int, out bool) error {
	if err := r.checkIndex(index); err != nil {
		return err
	}

	if out {
		r.teams[index].Out = true
	}

	return nil
}

// ActiveCandidates returns the indices of teams still in the game.
func (r *Roster) ActiveCandidates() []int {
	return lo.FilterMap(r.teams, func(t Team, i int) (int, bool) {
		return i, !t.Out
	})
}

// Winner returns the last team standing, or nil unless exactly one remains.
func (r *Roster) Winner() *Team {
	candidates := r.ActiveCandidates()
	if len(candidates) != 1 {
		return nil
	}

	t := r.teams[candidates[0]]

	return &t
}

// Leader returns the surviving team closest to target without going over.
// It returns nil when nobody survives or the best score is shared.
func (r *Roster) Leader(target int) *Team {
	var (
		best *Team
		tied bool
	)

	for _, i := range r.ActiveCandidates() {
		t := r.teams[i]
		if t.Score > target {
			continue
		}

		switch {
		case best == nil || t.Score > best.Score:
			best, tied = &t, false
		case t.Score == best.Score:
			tied = true
		}
	}

	if tied {
		return nil
	}

	return best
}
