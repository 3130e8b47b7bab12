// Package tags derives display data for scoring attributes.
package tags

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label humanizes and titleizes a tag key: "ATTACK_ON_AUTHOR" becomes
// "Attack On Author".
func Label(key string) string {
	human := strings.ToLower(strings.TrimSpace(key))
	human = strings.TrimSuffix(human, "_id")
	human = strings.Join(strings.FieldsFunc(human, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
	return cases.Title(language.Und).String(human)
}

// StripVersion removes an "@version" suffix from an attribute name.
func StripVersion(attribute string) string {
	if i := strings.IndexByte(attribute, '@'); i >= 0 {
		return attribute[:i]
	}
	return attribute
}
