package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
)

func TestConsumer_WritesThroughSink(t *testing.T) {
	gates := newGates()
	store := NewMemoryStore(gates, accountID)
	c := NewConsumer[*account]("save", store, ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	resp, err := c.Execute(context.Background(), &account{ID: "a1", Owner: "alice"}, "", WithOperation(nil, "create"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OK, resp.State)
	assert.Equal(t, 1, store.Len())

	resp, err = c.Execute(context.Background(), &account{ID: "a1"}, "", WithOperation(nil, Delete))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OK, resp.State)
	assert.Equal(t, "alice", resp.Data.Owner, "delete returns the stored entity")
	assert.Equal(t, 0, store.Len())
}

func TestConsumer_OperationResolution(t *testing.T) {
	gates := newGates()
	c := NewConsumer[*account]("save", NewMemoryStore(gates, accountID), ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())
	ctx := context.Background()

	resp, err := c.Execute(ctx, &account{ID: "a1"}, "", pipeline.NewContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.FatalError, resp.State)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeInvalidInput))

	resp, err = c.Execute(ctx, &account{ID: "a1"}, "", WithOperation(nil, "archive"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StopWithError, resp.State)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeUnsupportedOperation))
}

func TestConsumer_SinkErrors(t *testing.T) {
	gates := newGates()
	ctx := context.Background()

	failing := SinkFunc[*account, Operation](func(context.Context, []*account, Operation, *pipeline.Context) ([]*account, error) {
		return nil, fmt.Errorf("disk full")
	})
	c := NewConsumer[*account]("save", failing, ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	resp, err := c.Execute(ctx, &account{ID: "a1"}, "", WithOperation(nil, Create))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StopWithError, resp.State)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeDataSink))
	assert.ErrorContains(t, resp.Err, "disk full")

	refusing := SinkFunc[*account, Operation](func(_ context.Context, _ []*account, op Operation, _ *pipeline.Context) ([]*account, error) {
		return nil, errors.UnsupportedOperation(op.String())
	})
	c = NewConsumer[*account]("readonly", refusing, ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	resp, err = c.Execute(ctx, &account{ID: "a1"}, "", WithOperation(nil, Update))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StopWithError, resp.State)
	assert.False(t, errors.HasCode(resp.Err, errors.ErrCodeDataSink))
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeUnsupportedOperation))
}

func TestConsumer_EmailOperations(t *testing.T) {
	gates := newGates()
	var seen []EmailOperation
	mailbox := SinkFunc[*account, EmailOperation](func(_ context.Context, items []*account, op EmailOperation, _ *pipeline.Context) ([]*account, error) {
		seen = append(seen, op)
		return items, nil
	})
	c := NewConsumer[*account]("mailbox", mailbox, ParseEmailOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	for _, op := range []any{"Send", MarkAsRead} {
		resp, err := c.Execute(context.Background(), &account{ID: "m1"}, "", WithOperation(nil, op))
		require.NoError(t, err)
		require.Equal(t, pipeline.OK, resp.State)
	}
	assert.Equal(t, []EmailOperation{Send, MarkAsRead}, seen)
}

func TestConsumer_StopsPipeline(t *testing.T) {
	gates := newGates()
	store := NewMemoryStore(gates, accountID)
	after := 0

	p := pipeline.NewPipeline[*account]("persist", quiet(gates)...)
	require.NoError(t, p.AddProcessor(NewConsumer[*account]("save", store, ParseOperation, quiet(gates)...), ""))
	require.NoError(t, p.AddProcessor(pipeline.NewProcessor("after", func(_ context.Context, a *account, _ *pipeline.Context, r *pipeline.Response[*account]) (*pipeline.Response[*account], error) {
		after++
		return r.OK(a), nil
	}, quiet(gates)...), ""))
	require.NoError(t, p.Init())

	resp, err := p.Execute(context.Background(), &account{ID: "a1"}, "", WithOperation(nil, Update))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StopWithError, resp.State)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeDataSink))
	assert.Zero(t, after)
}

func TestCollectionConsumer_StoresMatchedMembers(t *testing.T) {
	gates := newGates()
	store := NewMemoryStore(gates, accountID)
	c := NewCollectionConsumer[*account]("save-open", store, ParseOperation, quiet(gates)...)
	require.NoError(t, c.Init())

	batch := []*account{
		{ID: "a1", Owner: "alice"},
		{ID: "a2", Owner: "bob", Closed: true},
		{ID: "a3", Owner: "carol"},
	}
	resp, err := c.Execute(context.Background(), batch, "!Closed", WithOperation(nil, Upsert))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OK, resp.State)
	assert.Equal(t, []string{"alice", "carol", "bob"}, owners(resp.Data))
	assert.Equal(t, []string{"alice", "carol"}, owners(store.Snapshot()))
}
