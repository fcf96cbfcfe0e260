// Package board drives the single-board computer's own status LED so the
// renderer's health is visible even when the strip is dark.
package board

// Pattern is a board LED behavior.
type Pattern string

// Patterns understood by every controller.
const (
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// StatusLED is the role name of the LED the Indicator drives.
const StatusLED = "status"

// Controller abstracts LED hardware control across different SBC boards.
// Implementations map role names to board-specific LEDs.
type Controller interface {
	// Set switches the LED with the given role on or off. An empty pattern keeps
	// the current trigger.
	Set(role string, on bool, pattern Pattern) error

	// Available returns the roles supported by this controller.
	Available() []string
}
