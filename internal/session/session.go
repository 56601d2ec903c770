package session

import (
	"sync"

	"github.com/google/uuid"

	"voiced/internal/stt"
	"voiced/pkg/types"
)

// Session is one device's live conversation state. At most one STT
// lease is held at a time; the mutex makes Begin -> Process* -> End a
// strictly ordered sequence even if a second decode attempt for the
// same device arrives concurrently.
type Session struct {
	mu       sync.Mutex
	deviceID string
	lease    *stt.Lease
	lang     types.LanguageTag
	uttID    string
	// decoding is true between BeginDecoding and EndDecoding.
	decoding bool
}

func (s *Session) DeviceID() string { return s.deviceID }

// UtteranceID identifies the current utterance for log correlation.
func (s *Session) UtteranceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uttID
}

// GetSttOrMake returns the engine leased for the current utterance,
// creating it on first use: detect the language once, lease from the
// winning pool, begin decoding. The language never changes mid-
// utterance; later frames reuse the cached lease. When the previous
// utterance has ended but the session lives on, decoding restarts on
// the same lease.
func (s *Session) GetSttOrMake(pools *stt.PoolSet, det *stt.Detector, samples []float32) (*stt.Lease, types.LanguageTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease != nil {
		if !s.decoding {
			if err := s.lease.BeginDecoding(); err != nil {
				return nil, "", err
			}
			s.decoding = true
			s.uttID = uuid.NewString()
		}
		return s.lease, s.lang, nil
	}
	lang, err := det.DetectLang(samples)
	if err != nil {
		return nil, "", err
	}
	pool, ok := pools.Pool(lang)
	if !ok {
		return nil, "", stt.ErrNoPool(lang)
	}
	lease, err := pool.Take()
	if err != nil {
		return nil, "", err
	}
	if err := lease.BeginDecoding(); err != nil {
		lease.Release()
		return nil, "", err
	}
	s.lease = lease
	s.lang = lang
	s.decoding = true
	s.uttID = uuid.NewString()
	return lease, lang, nil
}

// EndDecoding finishes the current decode cycle and returns the
// hypothesis. The lease stays cached for the rest of the conversation.
func (s *Session) EndDecoding() (stt.Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease == nil || !s.decoding {
		return stt.Decoded{}, errNoActiveSession{device: s.deviceID}
	}
	s.decoding = false
	return s.lease.EndDecoding()
}

// EndUtt clears the cached lease, returning the engine to its pool.
// Calling it without an active utterance is a caller-bug signal and is
// surfaced, not silently ignored.
func (s *Session) EndUtt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease == nil {
		return errNoActiveSession{device: s.deviceID}
	}
	s.lease.Release()
	s.lease = nil
	s.decoding = false
	s.uttID = ""
	return nil
}

// Lang reports the language bound to the current utterance.
func (s *Session) Lang() (types.LanguageTag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang, s.lease != nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease != nil {
		s.lease.Release()
		s.lease = nil
	}
	s.decoding = false
}

// Manager maps device ids to live sessions. Creation is the only
// mutation needing the map lock; the returned handle is independently
// lockable.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// SessionFor returns the device's session, creating it lazily on first
// request.
func (m *Manager) SessionFor(deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	if !ok {
		s = &Session{deviceID: deviceID}
		m.sessions[deviceID] = s
	}
	return s
}

// EndSession removes the device's session entirely, releasing any
// leased engine. It fails if the device had none.
func (m *Manager) EndSession(deviceID string) error {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if ok {
		delete(m.sessions, deviceID)
	}
	m.mu.Unlock()
	if !ok {
		return errNoSuchSession{device: deviceID}
	}
	s.close()
	return nil
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
