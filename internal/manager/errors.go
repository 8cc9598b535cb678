package manager

import "errors"

var (
	// ErrBattleNotFound is returned by any operation addressing an unknown
	// battle id.
	ErrBattleNotFound = errors.New("battle not found")

	// ErrBattleAlreadyExists is returned by Start when battle_id collides
	// with a battle the manager already owns (live or pending purge).
	ErrBattleAlreadyExists = errors.New("battle already exists")

	// ErrBattleEnded is the manager-level wrapper around battle.ErrEnded,
	// returned from ingress operations against a concluded battle.
	ErrBattleEnded = errors.New("battle has ended")
)
