// Package store persists audit events.
package store

import (
	"context"
	"sync"

	"ballotbox/internal/audit"
)

// Memory is the in-memory audit store for tests and development.
type Memory struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Memory) ListFiltered(_ context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	// Newest first, matching the Postgres ORDER BY created_at DESC.
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if !matches(event, filter) {
			continue
		}
		matched = append(matched, event)
	}

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func matches(event audit.Event, filter audit.Filter) bool {
	if filter.Action != "" && event.Action != filter.Action {
		return false
	}
	if filter.ActorID != nil {
		if event.ActorID == nil || *event.ActorID != *filter.ActorID {
			return false
		}
	}
	if filter.From != nil && event.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && event.Timestamp.After(*filter.To) {
		return false
	}
	return true
}
