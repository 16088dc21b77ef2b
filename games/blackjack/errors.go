/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import "errors"

var (
	ErrInvalidData        = errors.New("invalid word data")
	ErrEmptyPool          = errors.New("word pool is empty")
	ErrUnknownWord        = errors.New("unknown word")
	ErrAlreadyConsumed    = errors.New("word already used")
	ErrIndexOutOfRange    = errors.New("team index out of range")
	ErrInvalidTeamCount   = errors.New("invalid team count")
	ErrDuplicateTeam      = errors.New("duplicate team name")
	ErrInvalidTargetScore = errors.New("invalid target score")
	ErrInvalidMove        = errors.New("invalid move")

	// ErrDataUnavailable is returned when the word source could not be loaded.
	// It is kept apart from the move errors so callers can offer a retry.
	ErrDataUnavailable = errors.New("word data unavailable")
	ErrNotPlaying      = errors.New("no game in progress")
)
