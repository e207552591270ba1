package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// strips spaces, uppercase first letter, remove trailing period
func CleanupString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Title(language.English).String(s[:size]) + s[size:]
}

// Same as CleanupString for optional text; blank becomes nil
func CleanupOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := CleanupString(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
