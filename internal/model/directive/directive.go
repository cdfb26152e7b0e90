// Package directive holds the inline markers the assistant uses to request
// UI actions. The prompt composer emits them and the reply interpreter
// recognises them, so both sides share these definitions.
package directive

import "fmt"

const (
	// SupportMarker asks the widget to show the human-support button.
	SupportMarker = "[ACTION_SUPPORT_BUTTON]"

	// ButtonPrefix opens a dynamic action-button directive.
	ButtonPrefix = "[ACTION_BUTTON:"

	// ButtonSeparator splits the button name from its URL.
	ButtonSeparator = "|"

	// ButtonSuffix closes a dynamic action-button directive.
	ButtonSuffix = "]"
)

// Button formats a dynamic action-button directive.
func Button(name, url string) string {
	return fmt.Sprintf("%s%s%s%s%s", ButtonPrefix, name, ButtonSeparator, url, ButtonSuffix)
}
