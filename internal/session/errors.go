package session

// errNoActiveSession signals an utterance operation without an active
// utterance (double-end, end-before-begin). Caller bug, surfaced.
type errNoActiveSession struct{ device string }

func (e errNoActiveSession) Error() string { return "no active utterance for device: " + e.device }

// IsNoActiveSession reports whether err indicates an utterance
// operation outside an active utterance.
func IsNoActiveSession(err error) bool {
	_, ok := err.(errNoActiveSession)
	return ok
}

// errNoSuchSession signals an end-session for a device without one.
type errNoSuchSession struct{ device string }

func (e errNoSuchSession) Error() string { return "no session for device: " + e.device }

// IsNoSuchSession reports whether err indicates a missing session.
func IsNoSuchSession(err error) bool {
	_, ok := err.(errNoSuchSession)
	return ok
}
