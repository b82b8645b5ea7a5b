package workflow

import "fmt"

// Machine tracks the state of one record through a lifecycle
type Machine struct {
	lifecycle *Lifecycle
	current   State
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.lifecycle.transitions[m.current][trigger]
	return ok
}

// Fire moves the machine along trigger or returns ErrInvalidTransition
// and stays put
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.lifecycle.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: %s cannot fire %s from %s", ErrInvalidTransition, m.lifecycle.name, trigger, m.current)
	}
	m.current = to
	return nil
}
