// Package ecs is a small entity/component store. Each Store owns its entities; an entity is an
// opaque handle to which any number of typed bundles (plain Go structs) can be attached.
//
// Queries return a materialized snapshot of matching entities in creation order, so callers can
// mutate the store while walking a query result without disturbing the walk.
package ecs

import (
	"fmt"
	"reflect"
)

// Entity is an opaque handle scoped to a single Store. Handles are never reused, so a destroyed
// entity's handle never resolves again.
type Entity uint64

// ComponentType identifies a bundle type in queries
type ComponentType struct {
	t reflect.Type
}

// TypeOf returns the ComponentType for T
func TypeOf[T any]() ComponentType {
	return ComponentType{t: reflect.TypeOf((*T)(nil)).Elem()}
}

// String returns the bundle type name
func (c ComponentType) String() string {
	if c.t == nil {
		return "<nil>"
	}
	return c.t.String()
}

// Bundle is a typed value ready to be attached to an entity
type Bundle interface {
	componentType() reflect.Type
	attach(s *Store, e Entity)
}

type bundle[T any] struct {
	value T
}

func (b bundle[T]) componentType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (b bundle[T]) attach(s *Store, e Entity) {
	columnFor[T](s).data[e] = &b.value
}

// With wraps a bundle value for Spawn
func With[T any](v T) Bundle {
	return bundle[T]{value: v}
}

// column is the type-erased view of one bundle type's storage
type column interface {
	remove(e Entity)
	has(e Entity) bool
	len() int
}

type typedColumn[T any] struct {
	data map[Entity]*T
}

func (c *typedColumn[T]) remove(e Entity) {
	delete(c.data, e)
}

func (c *typedColumn[T]) has(e Entity) bool {
	_, ok := c.data[e]
	return ok
}

func (c *typedColumn[T]) len() int {
	return len(c.data)
}

// Store holds entities and their bundles
type Store struct {
	nextID  Entity
	order   []Entity
	alive   map[Entity]struct{}
	columns map[reflect.Type]column
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		alive:   make(map[Entity]struct{}),
		columns: make(map[reflect.Type]column),
	}
}

func columnFor[T any](s *Store) *typedColumn[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if c, ok := s.columns[t]; ok {
		return c.(*typedColumn[T])
	}
	c := &typedColumn[T]{data: make(map[Entity]*T)}
	s.columns[t] = c
	return c
}

func lookupColumn[T any](s *Store) (*typedColumn[T], bool) {
	c, ok := s.columns[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return c.(*typedColumn[T]), true
}

// Spawn creates a new entity carrying the given bundles.
// If two bundles share a type, the later one wins.
func (s *Store) Spawn(bundles ...Bundle) Entity {
	s.nextID++
	e := s.nextID
	s.alive[e] = struct{}{}
	s.order = append(s.order, e)
	for _, b := range bundles {
		b.attach(s, e)
	}
	return e
}

// Alive reports whether e exists in this store
func (s *Store) Alive(e Entity) bool {
	_, ok := s.alive[e]
	return ok
}

// Len returns the number of live entities
func (s *Store) Len() int {
	return len(s.order)
}

// Destroy removes e and all of its bundles. It returns false if e was not alive.
func (s *Store) Destroy(e Entity) bool {
	if !s.Alive(e) {
		return false
	}
	for _, c := range s.columns {
		c.remove(e)
	}
	delete(s.alive, e)
	for i, o := range s.order {
		if o == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Query returns, in creation order, every entity carrying all of the given bundle types.
// With no types it returns every live entity. The result is a snapshot.
func (s *Store) Query(types ...ComponentType) []Entity {
	cols := make([]column, 0, len(types))
	for _, ct := range types {
		c, ok := s.columns[ct.t]
		if !ok {
			return nil
		}
		cols = append(cols, c)
	}

	var out []Entity
	for _, e := range s.order {
		match := true
		for _, c := range cols {
			if !c.has(e) {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entities carrying a bundle of type ct
func (s *Store) Count(ct ComponentType) int {
	c, ok := s.columns[ct.t]
	if !ok {
		return 0
	}
	return c.len()
}

// Add attaches v to e, replacing any existing bundle of the same type.
// It returns false if e is not alive.
func Add[T any](s *Store, e Entity, v T) bool {
	if !s.Alive(e) {
		return false
	}
	columnFor[T](s).data[e] = &v
	return true
}

// Get returns a pointer to e's bundle of type T. Writes through the pointer are visible
// to every later read.
func Get[T any](s *Store, e Entity) (*T, bool) {
	c, ok := lookupColumn[T](s)
	if !ok {
		return nil, false
	}
	v, ok := c.data[e]
	return v, ok
}

// MustGet is Get for callers that hold the bundle as an invariant. It panics if the bundle is absent.
func MustGet[T any](s *Store, e Entity) *T {
	v, ok := Get[T](s, e)
	if !ok {
		panic(fmt.Sprintf("ecs: entity %d has no %s bundle", e, TypeOf[T]()))
	}
	return v
}

// Has reports whether e carries a bundle of type T
func Has[T any](s *Store, e Entity) bool {
	_, ok := Get[T](s, e)
	return ok
}

// Remove detaches e's bundle of type T. It returns false if there was none.
func Remove[T any](s *Store, e Entity) bool {
	c, ok := lookupColumn[T](s)
	if !ok || !c.has(e) {
		return false
	}
	c.remove(e)
	return true
}

// Each applies fn to every entity carrying an A, in query order
func Each[A any](s *Store, fn func(e Entity, a *A)) {
	for _, e := range s.Query(TypeOf[A]()) {
		if !s.Alive(e) {
			continue
		}
		fn(e, MustGet[A](s, e))
	}
}

// Each2 applies fn to every entity carrying both an A and a B, in query order.
// The match set is materialized before fn runs; an entity destroyed by an earlier call is skipped.
func Each2[A, B any](s *Store, fn func(e Entity, a *A, b *B)) {
	for _, e := range s.Query(TypeOf[A](), TypeOf[B]()) {
		if !s.Alive(e) {
			continue
		}
		fn(e, MustGet[A](s, e), MustGet[B](s, e))
	}
}
