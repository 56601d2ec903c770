package types

// SayRequest injects a typed request into the dispatch pipeline, exactly
// as if a satellite had sent it as text.
type SayRequest struct {
	// Device the request is attributed to.
	// example: sat-1
	DeviceID string `json:"device_id"`
	// Text of the request.
	// example: turn on the light
	Text string `json:"text"`
	// Optional locale; the server default is used when empty.
	// example: en-US
	Lang string `json:"lang,omitempty"`
}

// QueryRequest executes a skill-registered query.
type QueryRequest struct {
	// Skill that registered the query.
	// example: weather
	Skill string `json:"skill"`
	// Query name within the skill.
	// example: forecast
	Name string `json:"name"`
	// Query parameters.
	Params map[string]string `json:"params,omitempty"`
}

// QueryResponse carries a query's results.
type QueryResponse struct {
	Results map[string]string `json:"results"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// LanguageStatus summarizes one configured language for /status.
type LanguageStatus struct {
	// Language tag.
	// example: en-US
	Lang string `json:"lang"`
	// NLU lifecycle state: training, in_process, done, or excluded.
	// example: done
	NluState string `json:"nlu_state"`
	// Idle decoder instances currently pooled.
	// example: 2
	PoolIdle int `json:"pool_idle"`
	// Pool capacity for this language.
	// example: 3
	PoolCapacity int `json:"pool_capacity"`
}

// SkillStatus summarizes one skill load result for /skills.
type SkillStatus struct {
	// Skill name from its manifest.
	// example: lights
	Name string `json:"name"`
	// Whether the skill loaded completely.
	Loaded bool `json:"loaded"`
	// Load error when Loaded is false.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall daemon state (loading, ready, error).
	// example: ready
	State string `json:"state"`
	// Per-language NLU and pool state.
	Languages []LanguageStatus `json:"languages"`
	// Number of live device sessions.
	// example: 1
	Sessions int `json:"sessions"`
	// Loaded skill names.
	Skills []string `json:"skills"`
	// Skills excluded by load failures.
	FailedSkills []string `json:"failed_skills,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix"`
}
