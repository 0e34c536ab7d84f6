// Package debounce turns per-cycle visibility into one event per death.
package debounce

// State of the machine.
type State int

const (
	Idle        State = iota // no death message on screen
	DeathActive              // a counted death message is still on screen
)

func (s State) String() string {
	return [...]string{"idle", "death-active"}[s]
}

// Machine is the debounce state machine. Not safe for concurrent use.
type Machine struct {
	state State
}

// New returns a machine in Idle.
func New() *Machine {
	return &Machine{}
}

// Observe feeds one cycle's verdict and reports whether it starts a new death.
func (m *Machine) Observe(visible bool) bool {
	switch {
	case visible && m.state == Idle:
		m.state = DeathActive
		return true
	case !visible:
		m.state = Idle
	}
	return false
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Reset returns to Idle.
func (m *Machine) Reset() { m.state = Idle }
