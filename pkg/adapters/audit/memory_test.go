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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAuditor_Record(t *testing.T) {
	m := NewMemoryAuditor(0)

	event := &Event{
		Type:     EventPolicySetup,
		PolicyID: "policy-1",
		Metadata: map[string]string{"threshold": "2"},
	}
	require.NoError(t, m.Record(event))

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, OutcomeSuccess, event.Outcome)

	event.Metadata["threshold"] = "9"

	events, err := m.Events(Query{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, "2", events[0].Metadata["threshold"])
}

func TestMemoryAuditor_RecordInvalid(t *testing.T) {
	m := NewMemoryAuditor(0)

	assert.True(t, errors.Is(m.Record(nil), types.ErrInvalidArgument))
	assert.True(t, errors.Is(m.Record(&Event{}), types.ErrInvalidArgument))
	assert.Equal(t, 0, m.Len())

	_, err := m.Events(Query{Limit: -1})
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestMemoryAuditor_Query(t *testing.T) {
	m := NewMemoryAuditor(0)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []*Event{
		{Type: EventPolicySetup, PolicyID: "p1", Timestamp: base},
		{Type: EventApprovalVerify, PolicyID: "p1", ApproverID: "a1", Outcome: OutcomeRejected, Timestamp: base.Add(time.Minute)},
		{Type: EventApprovalVerify, PolicyID: "p1", ApproverID: "a1", Timestamp: base.Add(2 * time.Minute)},
		{Type: EventMasterKeyRecover, PolicyID: "p2", Outcome: OutcomeFailure, Timestamp: base.Add(3 * time.Minute)},
	}
	for _, e := range records {
		require.NoError(t, m.Record(e))
	}

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"all", Query{}, 4},
		{"by type", Query{Types: []EventType{EventApprovalVerify}}, 2},
		{"by outcome", Query{Outcomes: []Outcome{OutcomeRejected, OutcomeFailure}}, 2},
		{"by policy", Query{PolicyID: "p2"}, 1},
		{"by approver", Query{ApproverID: "a1"}, 2},
		{"since", Query{Since: base.Add(90 * time.Second)}, 2},
		{"until", Query{Until: base.Add(time.Minute)}, 2},
		{"limit", Query{Limit: 3}, 3},
		{"no match", Query{PolicyID: "p3"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := m.Events(tt.query)
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
		})
	}

	events, err := m.Events(Query{PolicyID: "p1"})
	require.NoError(t, err)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp), "events are oldest first")
	}
}

func TestMemoryAuditor_Capacity(t *testing.T) {
	m := NewMemoryAuditor(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Record(&Event{Type: EventShareDecrypt, Detail: fmt.Sprintf("event %d", i)}))
	}

	assert.Equal(t, 3, m.Len())
	events, err := m.Events(Query{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event 2", events[0].Detail)
	assert.Equal(t, "event 4", events[2].Detail)
}

func TestMemoryAuditor_Concurrent(t *testing.T) {
	m := NewMemoryAuditor(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = m.Record(&Event{Type: EventShareReencrypt})
				_, _ = m.Events(Query{Limit: 5})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, m.Len())
}

func TestOutcomeAndDetail(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, OutcomeOf(nil))
	assert.Equal(t, OutcomeFailure, OutcomeOf(types.ErrDecryption))
	assert.Empty(t, DetailOf(nil))
	assert.Contains(t, DetailOf(fmt.Errorf("wrap: %w", types.ErrDecryption)), "wrap: ")

	var nop Nop
	assert.NoError(t, nop.Record(&Event{}))
	events, err := nop.Events(Query{})
	assert.NoError(t, err)
	assert.Empty(t, events)
}
