package statedoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSearchStateDocNotFound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	hit, err := store.SearchStateDoc(ctx, "analytics-missing-progress")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestIndexStateDocThroughAlias(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	body := []byte(`{"progress":[{"name":"reindexing","percent":40}]}`)
	require.NoError(t, store.IndexStateDoc(ctx, WriteAlias, "analytics-job1-progress", body))

	hit, err := store.SearchStateDoc(ctx, "analytics-job1-progress")
	require.NoError(t, err)
	require.NotNil(t, hit)

	// The alias resolves to the seeded physical index; documents never live
	// under the alias name itself.
	assert.Equal(t, "state-000001", hit.Index)
	assert.Equal(t, "analytics-job1-progress", hit.ID)
	assert.Equal(t, body, hit.Body)
}

func TestIndexStateDocUpsertReplacesBody(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	docID := "analytics-job1-progress"
	require.NoError(t, store.IndexStateDoc(ctx, WriteAlias, docID, []byte(`{"progress":[]}`)))

	updated := []byte(`{"progress":[{"name":"reindexing","percent":100}]}`)
	require.NoError(t, store.IndexStateDoc(ctx, WriteAlias, docID, updated))

	hit, err := store.SearchStateDoc(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, updated, hit.Body)

	var count int
	err = store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM state_docs WHERE doc_id = ?`, docID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "upsert must not create a second row")
}

func TestIndexStateDocPhysicalIndexTarget(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// A target that is not a known alias is a physical index name.
	require.NoError(t, store.IndexStateDoc(ctx, "state-000002", "analytics-job2-progress", []byte(`{}`)))

	hit, err := store.SearchStateDoc(ctx, "analytics-job2-progress")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "state-000002", hit.Index)
}

func TestIndexStateDocEmptyTarget(t *testing.T) {
	store := openTestStore(t)
	err := store.IndexStateDoc(context.Background(), "", "doc", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestRolloverWriteAlias(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	docID := "analytics-job1-progress"
	require.NoError(t, store.IndexStateDoc(ctx, WriteAlias, docID, []byte(`{"v":1}`)))

	require.NoError(t, store.RolloverWriteAlias(ctx, "state-000002"))

	// The existing document stays in its original index.
	hit, err := store.SearchStateDoc(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "state-000001", hit.Index)

	// New alias writes for other docs land in the new index.
	require.NoError(t, store.IndexStateDoc(ctx, WriteAlias, "analytics-job9-progress", []byte(`{}`)))
	hit, err = store.SearchStateDoc(ctx, "analytics-job9-progress")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "state-000002", hit.Index)

	// Writing back to the found physical index keeps the old doc in place
	// without duplicating it into the rolled-over index.
	require.NoError(t, store.IndexStateDoc(ctx, hit.Index, "analytics-job9-progress", []byte(`{"v":2}`)))
	require.NoError(t, store.IndexStateDoc(ctx, "state-000001", docID, []byte(`{"v":2}`)))

	var count int
	err = store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM state_docs WHERE doc_id = ?`, docID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSearchStateDocDeterministicAcrossIndices(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	docID := "analytics-dup-progress"
	require.NoError(t, store.IndexStateDoc(ctx, "state-000003", docID, []byte(`{"v":3}`)))
	require.NoError(t, store.IndexStateDoc(ctx, "state-000001", docID, []byte(`{"v":1}`)))

	hit, err := store.SearchStateDoc(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "state-000001", hit.Index)
}

func TestCheckHealth(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.CheckHealth(context.Background()))
}
