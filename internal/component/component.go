// Package component defines the attribute bundles attached to session entities.
package component

import "github.com/mcoot/duelsync-go/internal/model"

// Position is an entity's authoritative location on the ground plane
type Position struct {
	X float64
	Z float64
}

// Velocity is the displacement applied to Position on every tick, in position units per tick
type Velocity struct {
	X float64
	Z float64
}

// PlayerAssignment binds an entity to a session slot
type PlayerAssignment struct {
	PlayerNumber model.PlayerNumber
	PlayerID     model.PlayerID
	IsLocal      bool
}

// Damage marks an entity whose Position is reported as a damage position
type Damage struct {
	Amount float64
}
