package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink/internal/platform/apperr"
)

type testDoc struct {
	PatientID string    `json:"patientId"`
	Status    string    `json:"status"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	var d testDoc
	err := m.Get(context.Background(), "grants", "nope", &d)
	assert.True(t, IsNotFound(err))
}

func TestMemory_SetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, m.Set(ctx, "grants", "d1_p1", testDoc{PatientID: "p1", Status: "active", CreatedAt: now}))

	var got testDoc
	require.NoError(t, m.Get(ctx, "grants", "d1_p1", &got))
	assert.Equal(t, "p1", got.PatientID)
	assert.Equal(t, "active", got.Status)
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestMemory_SetOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "grants", "k", testDoc{Status: "revoked"}))
	require.NoError(t, m.Set(ctx, "grants", "k", testDoc{Status: "active"}))

	var got testDoc
	require.NoError(t, m.Get(ctx, "grants", "k", &got))
	assert.Equal(t, "active", got.Status)
}

func TestMemory_UpdateMergesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "grants", "k", testDoc{PatientID: "p1", Status: "active"}))
	require.NoError(t, m.Update(ctx, "grants", "k", map[string]any{"status": "revoked"}))

	var got testDoc
	require.NoError(t, m.Get(ctx, "grants", "k", &got))
	assert.Equal(t, "revoked", got.Status)
	assert.Equal(t, "p1", got.PatientID)
}

func TestMemory_UpdateMissing(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), "grants", "k", map[string]any{"status": "revoked"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_QueryFiltersAndOrders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i, status := range []string{"active", "revoked", "active", "active"} {
		require.NoError(t, m.Set(ctx, "grants", fmt.Sprintf("k%d", i), testDoc{PatientID: "p1", Status: status}))
	}
	require.NoError(t, m.Set(ctx, "grants", "k9", testDoc{PatientID: "p2", Status: "active"}))

	snaps, err := m.Query(ctx, "grants", Query{}.Where("patientId", "p1").Where("status", "active"))
	require.NoError(t, err)
	keys := make([]string, len(snaps))
	for i, s := range snaps {
		keys[i] = s.Key()
	}
	assert.Equal(t, []string{"k0", "k2", "k3"}, keys)

	desc, err := m.Query(ctx, "grants", Query{Descending: true}.Where("patientId", "p1"))
	require.NoError(t, err)
	require.Len(t, desc, 4)
	assert.Equal(t, "k3", desc[0].Key())
}

func TestMemory_QueryBooleanFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "records", "a", testDoc{IsActive: true}))
	require.NoError(t, m.Set(ctx, "records", "b", testDoc{IsActive: false}))

	snaps, err := m.Query(ctx, "records", Query{}.Where("isActive", false))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "b", snaps[0].Key())
}

func TestMemory_QueryPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Set(ctx, "records", fmt.Sprintf("r%d", i), testDoc{PatientID: "p1"}))
	}

	var seen []string
	cursor := ""
	for {
		snaps, err := m.Query(ctx, "records", Query{Limit: 2, StartAfter: cursor}.Where("patientId", "p1"))
		require.NoError(t, err)
		for _, s := range snaps {
			seen = append(seen, s.Key())
		}
		if len(snaps) < 2 {
			break
		}
		cursor = snaps[len(snaps)-1].Key()
	}
	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r4"}, seen)

	back, err := m.Query(ctx, "records", Query{Limit: 2, StartAfter: "r3", Descending: true})
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "r2", back[0].Key())
	assert.Equal(t, "r1", back[1].Key())
}

func TestMemory_Counts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "c", "k", testDoc{})
	_ = m.Get(ctx, "c", "k", &testDoc{})
	_, _ = m.Query(ctx, "c", Query{})
	_ = m.Update(ctx, "c", "k", map[string]any{"status": "x"})

	assert.Equal(t, OpCounts{Gets: 1, Sets: 1, Updates: 1, Queries: 1}, m.Counts())
}

func TestMemory_CancelledContextIsUnavailable(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Get(ctx, "c", "k", &testDoc{})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

type blockingStore struct{ Memory }

func (b *blockingStore) Get(ctx context.Context, _, _ string, _ any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeout_MapsDeadlineToUnavailable(t *testing.T) {
	s := WithTimeout(&blockingStore{}, 10*time.Millisecond)
	err := s.Get(context.Background(), "c", "k", &testDoc{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStoreUnavailable))
}

func TestWithTimeout_ZeroIsPassthrough(t *testing.T) {
	m := NewMemory()
	assert.Same(t, Store(m), WithTimeout(m, 0))
}
