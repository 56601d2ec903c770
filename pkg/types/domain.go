package types

// LanguageTag identifies a locale (BCP-47 style, e.g. "en-US").
// Tags are opaque and comparable; negotiation happens once at startup.
type LanguageTag string

func (l LanguageTag) String() string { return string(l) }

// NegotiateLanguage picks the best supported tag for a requested one.
// An exact match wins; otherwise a match on the primary subtag (the part
// before '-') wins; otherwise the fallback is returned.
func NegotiateLanguage(requested LanguageTag, supported []LanguageTag, fallback LanguageTag) LanguageTag {
	if requested == "" {
		return fallback
	}
	for _, s := range supported {
		if s == requested {
			return s
		}
	}
	reqPrimary := primarySubtag(requested)
	for _, s := range supported {
		if primarySubtag(s) == reqPrimary {
			return s
		}
	}
	return fallback
}

func primarySubtag(l LanguageTag) string {
	s := string(l)
	for i := 0; i < len(s); i++ {
		if s[i] == '-' || s[i] == '_' {
			return s[:i]
		}
	}
	return s
}

// AcousticModel is a per-language speech model discovered on disk.
type AcousticModel struct {
	// Language this model decodes.
	Lang LanguageTag `json:"lang"`
	// Absolute path to the model file.
	Path string `json:"path"`
}

// Answer is what an action produces for the requesting satellite.
type Answer struct {
	// Text to speak or display on the satellite.
	Text string `json:"text"`
	// EndSession marks the conversational turn as finished; the session
	// and its leased decoder are released when set.
	EndSession bool `json:"end_session,omitempty"`
}

// RequestContext carries per-request data into actions and signals.
// NLU slots are merged into a copy of the base data so actions never
// mutate shared state.
type RequestContext struct {
	Locale   LanguageTag
	DeviceID string
	// User-facing intent name (demangled); empty for event signals.
	Intent string
	// Capabilities the requesting device declared at announce time, so
	// actions can tailor answers (e.g. skip visual output for
	// audio-only satellites).
	Capabilities []string
	Data         map[string]string
}

// NewRequestContext builds a context over a copy of base, then merges
// the extracted slots on top.
func NewRequestContext(locale LanguageTag, deviceID string, base, slots map[string]string) *RequestContext {
	data := make(map[string]string, len(base)+len(slots))
	for k, v := range base {
		data[k] = v
	}
	for k, v := range slots {
		data[k] = v
	}
	return &RequestContext{Locale: locale, DeviceID: deviceID, Data: data}
}
