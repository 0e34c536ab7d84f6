// Package orchestrator runs the death monitor and exposes it to the shells.
package orchestrator

// Orchestrator configuration constants
const (
	// Event log kept for the terminal UI
	EventLogMaxEntries = 200
	EventLogBuffer     = 64

	// Journal rows shown by -history when no count is given
	DefaultHistoryLimit = 10
)
