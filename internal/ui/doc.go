// Package ui provides the terminal pieces of kstats' output: the color
// palette and status symbols, bubbles tables for the report, a live
// progress display while hosts are polled, and a huh confirmation prompt.
//
// # Color Scheme
//
// Colors are defined as ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Hosts that answered
//	ColorError     (red)    - Failed hosts
//	ColorWarning   (yellow) - Cancelled hosts
//	ColorInfo      (cyan)   - Host headings
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - In-progress indicators
//
// ConfigureColor applies the --color flag; in auto mode colors are only
// used when stdout is a terminal.
//
// # Progress
//
//	p := ui.NewProgress(os.Stderr, "Polling", len(hosts))
//	p.Start()
//	// ... p.Advance(host, failed) per finished host ...
//	p.Stop()
package ui
