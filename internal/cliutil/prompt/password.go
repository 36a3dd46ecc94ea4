// Package prompt provides interactive terminal prompts for portwayctl.
package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch indicates the confirmation prompt didn't match.
var ErrPasswordMismatch = errors.New("passphrases do not match")

// Password prompts for masked input with a minimum length.
func Password(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("must be at least %d characters", minLength)
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	return result, nil
}

// PasswordWithConfirmation prompts twice and requires the two entries match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	pass, err := Password(label, minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password(confirmLabel, 0)
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", ErrPasswordMismatch
	}
	return pass, nil
}
