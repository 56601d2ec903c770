package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// CapsManager records each device's declared capability set. Its
// lifecycle is independent of sessions: a device can have capabilities
// recorded before or after any session exists.
type CapsManager struct {
	mu   sync.Mutex
	caps map[string]map[string]struct{}
	log  zerolog.Logger
}

func NewCapsManager(log zerolog.Logger) *CapsManager {
	return &CapsManager{caps: make(map[string]map[string]struct{}), log: log}
}

// AddClient replaces the device's capability set.
func (c *CapsManager) AddClient(deviceID string, caps []string) {
	set := make(map[string]struct{}, len(caps))
	for _, cap := range caps {
		set[cap] = struct{}{}
	}
	c.mu.Lock()
	c.caps[deviceID] = set
	c.mu.Unlock()
}

// HasCap reports whether the device declared the capability.
func (c *CapsManager) HasCap(deviceID, cap string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.caps[deviceID]
	if !ok {
		return false
	}
	_, ok = set[cap]
	return ok
}

// Caps returns the device's capability names in sorted order.
func (c *CapsManager) Caps(deviceID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.caps[deviceID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for cap := range set {
		out = append(out, cap)
	}
	sort.Strings(out)
	return out
}

// Disconnected drops the device's record. Transports deliver duplicate
// or out-of-order disconnects, so an unknown device is logged and
// tolerated, not treated as fatal.
func (c *CapsManager) Disconnected(deviceID string) {
	c.mu.Lock()
	_, ok := c.caps[deviceID]
	delete(c.caps, deviceID)
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Str("device", deviceID).Msg("disconnect for unknown device")
	}
}

// Count reports the number of tracked devices.
func (c *CapsManager) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.caps)
}
