// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recovery.
//
// go-recovery is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package audit

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-recovery/pkg/types"
)

// MemoryAuditor keeps events in memory in insertion order. A capacity above
// zero bounds the trail; the oldest events are dropped first.
type MemoryAuditor struct {
	mu       sync.RWMutex
	events   []*Event
	capacity int
	now      func() time.Time
}

// NewMemoryAuditor creates an in-memory auditor. A capacity of zero keeps
// every event.
func NewMemoryAuditor(capacity int) *MemoryAuditor {
	return &MemoryAuditor{capacity: capacity, now: time.Now}
}

// Record stores a copy of the event.
func (m *MemoryAuditor) Record(event *Event) error {
	if event == nil {
		return fmt.Errorf("%w: event cannot be nil", types.ErrInvalidArgument)
	}
	if event.Type == "" {
		return fmt.Errorf("%w: event type is required", types.ErrInvalidArgument)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}

	stored := *event
	if event.Metadata != nil {
		stored.Metadata = make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			stored.Metadata[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, &stored)
	if m.capacity > 0 && len(m.events) > m.capacity {
		drop := len(m.events) - m.capacity
		clear(m.events[:drop])
		m.events = m.events[drop:]
	}
	return nil
}

// Events returns matching events oldest first, up to query.Limit.
func (m *MemoryAuditor) Events(query Query) ([]*Event, error) {
	if query.Limit < 0 {
		return nil, fmt.Errorf("%w: limit cannot be negative", types.ErrInvalidArgument)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for _, e := range m.events {
		if !matches(e, query) {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of retained events.
func (m *MemoryAuditor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func matches(e *Event, q Query) bool {
	if len(q.Types) > 0 && !slices.Contains(q.Types, e.Type) {
		return false
	}
	if len(q.Outcomes) > 0 && !slices.Contains(q.Outcomes, e.Outcome) {
		return false
	}
	if q.PolicyID != "" && e.PolicyID != q.PolicyID {
		return false
	}
	if q.ApproverID != "" && e.ApproverID != q.ApproverID {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	return true
}
