package ui

import (
	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question on the terminal and returns the answer.
func Confirm(title, description string) (bool, error) {
	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Poll").
				Negative("Cancel").
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return proceed, nil
}
