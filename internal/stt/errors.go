package stt

import "voiced/pkg/types"

// noPoolError signals a detected language with no configured pool.
type noPoolError struct{ lang types.LanguageTag }

func (e noPoolError) Error() string { return "no engine pool for language: " + string(e.lang) }

// ErrNoPool constructs a noPoolError.
func ErrNoPool(lang types.LanguageTag) error { return noPoolError{lang: lang} }

// IsNoPool reports whether err indicates a missing language pool.
func IsNoPool(err error) bool {
	_, ok := err.(noPoolError)
	return ok
}
