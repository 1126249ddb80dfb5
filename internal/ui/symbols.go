package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host polled
	SymbolFail     = "✗" // Host failed
	SymbolPending  = "○" // Host not yet polled
	SymbolProgress = "◐" // Poll in progress
	SymbolComplete = "●" // Batch done
	SymbolSkipped  = "⊘" // Host cancelled
)
