package movement

import (
	"github.com/mcoot/duelsync-go/internal/component"
	"github.com/mcoot/duelsync-go/internal/ecs"
)

// Step integrates velocity into position for every entity carrying both bundles.
// Velocity is in position units per tick, so one call advances exactly one tick.
func Step(store *ecs.Store) {
	ecs.Each2(store, func(_ ecs.Entity, pos *component.Position, vel *component.Velocity) {
		pos.X += vel.X
		pos.Z += vel.Z
	})
}
