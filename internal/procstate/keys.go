package procstate

import "fmt"

// Interrupt keys. The simulated console needs C-c for itself, so the host
// terminal interrupts with C-] while a simulation runs.
const (
	DefaultInterruptKey byte = 0x03 // C-c
	FireSimInterruptKey byte = 0x1d // C-]
)

// KeyName renders a control character in caret notation.
func KeyName(k byte) string {
	switch {
	case k < 0x20:
		return fmt.Sprintf("^%c", k+'@')
	case k == 0x7f:
		return "^?"
	default:
		return string(rune(k))
	}
}
