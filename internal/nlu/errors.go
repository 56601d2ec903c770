package nlu

import (
	"errors"

	"voiced/pkg/types"
)

// incompatibleLanguageError signals a language the backend cannot train.
type incompatibleLanguageError struct{ lang types.LanguageTag }

func (e incompatibleLanguageError) Error() string {
	return "language not compatible with NLU backend: " + string(e.lang)
}

// ErrIncompatibleLanguage constructs an incompatibleLanguageError.
func ErrIncompatibleLanguage(lang types.LanguageTag) error {
	return incompatibleLanguageError{lang: lang}
}

// IsIncompatibleLanguage reports whether err indicates a language the
// backend rejected, matching through joined and wrapped errors.
func IsIncompatibleLanguage(err error) bool {
	var target incompatibleLanguageError
	return errors.As(err, &target)
}

// unknownLanguageError signals a parse for a language that is not in
// service (never configured, or excluded by a training failure).
type unknownLanguageError struct{ lang types.LanguageTag }

func (e unknownLanguageError) Error() string {
	return "language not in service: " + string(e.lang)
}

// ErrUnknownLanguage constructs an unknownLanguageError.
func ErrUnknownLanguage(lang types.LanguageTag) error { return unknownLanguageError{lang: lang} }

// IsUnknownLanguage reports whether err indicates an unserved language.
func IsUnknownLanguage(err error) bool {
	var target unknownLanguageError
	return errors.As(err, &target)
}
