package mockserver

import (
	"sync"
	"time"
)

// State manages the scriptable readiness of the mock inference server
type State struct {
	mu sync.RWMutex

	// Configuration for testing
	healthyAfterPolls int           // become healthy after N health requests (0 = immediately)
	healthyAfterDelay time.Duration // become healthy after a load delay (0 = immediately)
	neverHealthy      bool

	polls     int
	startedAt time.Time
	model     string
}

// NewState creates mock server state that reports healthy immediately
func NewState() *State {
	return &State{startedAt: time.Now()}
}

// SetHealthyAfterPolls makes the server unhealthy for the first n health requests
func (s *State) SetHealthyAfterPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthyAfterPolls = n
}

// SetHealthyAfterDelay simulates a model load taking d to finish
func (s *State) SetHealthyAfterDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthyAfterDelay = d
	s.startedAt = time.Now()
}

// SetNeverHealthy simulates a model that never finishes loading
func (s *State) SetNeverHealthy(never bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neverHealthy = never
}

// SetModel records the model name reported by the status endpoint
func (s *State) SetModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = name
}

// Healthy evaluates the current readiness and counts the poll
func (s *State) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	if s.neverHealthy {
		return false
	}
	if s.healthyAfterPolls > 0 && s.polls <= s.healthyAfterPolls {
		return false
	}
	if s.healthyAfterDelay > 0 && time.Since(s.startedAt) < s.healthyAfterDelay {
		return false
	}
	return true
}

// Polls returns how many health requests have been seen
func (s *State) Polls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polls
}

// Model returns the configured model name
func (s *State) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Reset restores the initial state
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthyAfterPolls = 0
	s.healthyAfterDelay = 0
	s.neverHealthy = false
	s.polls = 0
	s.model = ""
	s.startedAt = time.Now()
}
