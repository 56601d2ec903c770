package registry

// duplicateKeyError signals an insert over an existing mangled key.
type duplicateKeyError struct{ key string }

func (e duplicateKeyError) Error() string { return "duplicate registry key: " + e.key }

// IsDuplicateKey reports whether err indicates a mangled-key collision.
func IsDuplicateKey(err error) bool {
	_, ok := err.(duplicateKeyError)
	return ok
}

// notFoundError signals a lookup for a key that was never registered or
// has been removed.
type notFoundError struct{ key string }

func (e notFoundError) Error() string { return "registry key not found: " + e.key }

// ErrNotFound constructs a notFoundError for the given mangled key.
func ErrNotFound(key string) error { return notFoundError{key: key} }

// IsNotFound reports whether the error indicates a missing registry key.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}
