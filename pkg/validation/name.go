package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/msgsight/cfgd/pkg/cfgerr"
)

// ValidateName checks the name of a collection object.
func ValidateName(objectType, name string, maxLen int) error {
	if name == "" {
		return cfgerr.InvalidValue(objectType, name, "Name", "")
	}
	if !utf8.ValidString(name) {
		return cfgerr.InvalidCharacter(objectType, name)
	}
	first, _ := utf8.DecodeRuneInString(name)
	if unicode.IsSpace(first) {
		return cfgerr.InvalidCharacter(objectType, name)
	}
	for _, r := range name {
		// Commas separate names in reference lists.
		if r == ',' || unicode.IsControl(r) {
			return cfgerr.InvalidCharacter(objectType, name)
		}
	}
	if strings.TrimRightFunc(name, unicode.IsSpace) != name {
		return cfgerr.TrailingSpace(objectType, name)
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return cfgerr.NameTooLong(objectType, name)
	}
	return nil
}
