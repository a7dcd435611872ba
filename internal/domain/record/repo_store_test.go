package record

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/docstore"
	"github.com/carelink/carelink/pkg/pagination"
)

func TestStoreRepo_PagesNewestFirst(t *testing.T) {
	store := docstore.NewMemory()
	svc := NewService(NewStoreRepo(store), pagination.Limits{}, zerolog.Nop())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := svc.CreateRecord(ctx, activeGrant(), NewRecord{Diagnosis: "visit", VisitDate: day(i + 1)})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	require.NoError(t, svc.DeactivateRecord(ctx, activeGrant(), ids[1]))
	require.NoError(t, svc.DeactivateRecord(ctx, activeGrant(), ids[3]))

	// someone else's record must never show up
	other := activeGrant()
	other.PatientID = "U7"
	_, err := svc.CreateRecord(ctx, other, NewRecord{Diagnosis: "other"})
	require.NoError(t, err)

	before := store.Counts().Queries
	var (
		seen    []string
		cursor  string
		hasMore = true
	)
	for hasMore {
		page, err := svc.ListRecords(ctx, "U2", cursor, 2, false)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Records), 2)
		for _, r := range page.Records {
			seen = append(seen, r.ID)
		}
		hasMore, cursor = page.HasMore, page.NextCursor
	}

	assert.Equal(t, []string{ids[4], ids[2], ids[0]}, seen)
	assert.Equal(t, int64(3), store.Counts().Queries-before)
}

func TestStoreRepo_GetAndDeactivate(t *testing.T) {
	repo := NewStoreRepo(docstore.NewMemory())
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7()).String()
	require.NoError(t, repo.Save(ctx, &MedicalRecord{ID: id, PatientID: "U2", Diagnosis: "Flu", IsActive: true}))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Flu", got.Diagnosis)

	require.NoError(t, repo.Deactivate(ctx, id, *day(9)))
	got, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.DeactivatedAt)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.Deactivate(ctx, "missing", *day(9)), apperr.ErrNotFound)
}
