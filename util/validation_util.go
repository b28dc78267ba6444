// util/validation_util.go

package util

import (
	"strings"

	"github.com/go-playground/validator/v10"

	gate_errors "github.com/calltoleap/gatekeeper/errors"
)

// markdownRunes are stripped so an email pasted as `code`, *bold* or
// _italics_ still matches. zeroWidthRunes covers the invisible characters
// mobile clients like to smuggle into pasted text.
const markdownRunes = "`*_~|"

var zeroWidthRunes = map[rune]bool{
	'\u200b': true, // zero-width space
	'\u200c': true, // zero-width non-joiner
	'\u200d': true, // zero-width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // BOM
}

type ValidationUtil struct {
	validate *validator.Validate
}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{validate: validator.New()}
}

// NormalizeEmail reduces raw inbound text to a lowercase email string:
// markdown decoration, zero-width runes and surrounding whitespace are
// stripped before the shape check. Returns errors.ErrInvalidEmail when the
// result does not look like an email.
func (v *ValidationUtil) NormalizeEmail(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if zeroWidthRunes[r] || strings.ContainsRune(markdownRunes, r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.ToLower(strings.TrimSpace(cleaned))

	if err := v.validate.Var(cleaned, "required,email"); err != nil {
		return "", gate_errors.ErrInvalidEmail
	}
	return cleaned, nil
}
