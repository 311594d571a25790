package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/entitypipe/errors"
)

func owners(items []*account) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Owner
	}
	return out
}

func TestMemorySource_Fetch(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource(newGates(), &account{Owner: "alice", Balance: 50}, &account{Owner: "bob", Balance: 5})

	all, err := src.Fetch(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners(all))

	rich, err := src.Fetch(ctx, "Balance > 10", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners(rich))

	_, err = src.Fetch(ctx, "Balance >", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCondition))
}

func TestMemorySource_NoGates(t *testing.T) {
	src := NewMemorySource[*account](nil, &account{Owner: "alice"})
	_, err := src.Fetch(context.Background(), "Balance > 1", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCondition))
}

func TestMemoryStore_Operations(t *testing.T) {
	ctx := context.Background()
	store := seeded(newGates())
	require.Equal(t, 3, store.Len())

	_, err := store.Process(ctx, []*account{{ID: "a1"}}, Create, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	_, err = store.Process(ctx, []*account{{ID: "a2", Owner: "bobby"}, {ID: "zz"}}, Update, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	got, found, err := store.Find(ctx, "a2", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", got.Owner, "a failed batch must not write")

	_, err = store.Process(ctx, []*account{{ID: "a2", Owner: "bobby"}, {ID: "a4", Owner: "dave"}}, Upsert, nil)
	require.NoError(t, err)

	removed, err := store.Process(ctx, []*account{{ID: "a1"}}, Delete, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", removed[0].Owner)

	assert.Equal(t, []string{"bobby", "carol", "dave"}, owners(store.Snapshot()))

	_, found, err = store.Find(ctx, "a1", nil)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.Process(ctx, []*account{{ID: "a2"}}, Operation(99), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedOperation))
}

func TestMemoryStore_FetchQuery(t *testing.T) {
	store := seeded(newGates())
	open, err := store.Fetch(context.Background(), "!Closed", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners(open))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := seeded(newGates())

	_, err := store.Fetch(ctx, "", nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = store.Find(ctx, "a1", nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Process(ctx, nil, Create, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
