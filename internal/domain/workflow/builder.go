package workflow

import "fmt"

// Lifecycle is an immutable transition table. Machines built from the same
// lifecycle share it read-only.
type Lifecycle struct {
	name        string
	transitions map[State]map[Trigger]State
}

// Builder collects the transitions of one lifecycle
type Builder struct {
	lifecycle *Lifecycle
}

// NewBuilder starts a lifecycle called name
func NewBuilder(name string) *Builder {
	return &Builder{lifecycle: &Lifecycle{
		name:        name,
		transitions: make(map[State]map[Trigger]State),
	}}
}

// Permit allows trigger to move a machine from one state to another. A
// trigger has at most one target per source state.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("%s: invalid state: %s", b.lifecycle.name, from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("%s: invalid target state: %s", b.lifecycle.name, to))
	}

	targets, ok := b.lifecycle.transitions[from]
	if !ok {
		targets = make(map[Trigger]State)
		b.lifecycle.transitions[from] = targets
	}
	if existing, dup := targets[trigger]; dup && existing != to {
		panic(fmt.Sprintf("%s: %s from %s already leads to %s", b.lifecycle.name, trigger, from, existing))
	}
	targets[trigger] = to
	return b
}

// Lifecycle returns the finished table. The builder must not be used
// afterwards.
func (b *Builder) Lifecycle() *Lifecycle {
	l := b.lifecycle
	b.lifecycle = nil
	return l
}

// Machine returns a machine of this lifecycle at initial
func (l *Lifecycle) Machine(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("%s: invalid initial state: %s", l.name, initial))
	}
	return &Machine{lifecycle: l, current: initial}
}
