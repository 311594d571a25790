package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
)

func TestProducer_Read(t *testing.T) {
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.AddProcessor(capitalize(gates), "Balance > 10"))
	require.NoError(t, p.Init())

	producer := NewProducer(seeded(gates), p)
	got, err := producer.Read(context.Background(), "!Closed", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALICE", "bob"}, owners(got))
}

func TestProducer_EmptyFetch(t *testing.T) {
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.Init())

	got, err := NewProducer(seeded(gates), p).Read(context.Background(), "Balance > 1000", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProducer_FetchError(t *testing.T) {
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.Init())

	failing := SourceFunc[*account](func(context.Context, string, *pipeline.Context) ([]*account, error) {
		return nil, fmt.Errorf("connection reset")
	})
	_, err := NewProducer(failing, p).Read(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDataSource))
}

func TestProducer_StopWithErrorIsReported(t *testing.T) {
	gates := newGates()
	stop := pipeline.NewCollectionProcessor("stop", func(_ context.Context, _, _ []*account, _ *pipeline.Context, r *pipeline.Response[[]*account]) (*pipeline.Response[[]*account], error) {
		return r.SetError(pipeline.StopWithError, fmt.Errorf("quota exceeded")), nil
	}, quiet(gates)...)
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.AddProcessor(stop, ""))
	require.NoError(t, p.Init())

	_, err := NewProducer(seeded(gates), p).Read(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePipelineStopped))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestProducer_UnavailablePipeline(t *testing.T) {
	gates := newGates()
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)

	_, err := NewProducer(seeded(gates), p).Read(context.Background(), "", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProcessorUnavailable))
}

func TestEntityProducer_Find(t *testing.T) {
	gates := newGates()
	proc := closing(gates)
	require.NoError(t, proc.Init())
	producer := NewEntityProducer[string, *account](seeded(gates), proc)
	ctx := context.Background()

	got, err := producer.Find(ctx, "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)

	got, err = producer.Find(ctx, "a3", nil)
	require.NoError(t, err)
	assert.Nil(t, got, "closed accounts are nulled out")

	_, err = producer.Find(ctx, "missing", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestEntityProducer_ReadEach(t *testing.T) {
	gates := newGates()
	proc := closing(gates)
	require.NoError(t, proc.Init())
	store := seeded(gates)
	producer := NewEntityProducer[string, *account](store, proc)

	got, err := producer.ReadEach(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners(got))

	_, err = store.Process(context.Background(), []*account{{ID: "a5", Owner: "eve", Balance: -1}}, Create, nil)
	require.NoError(t, err)
	_, err = producer.ReadEach(context.Background(), "", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodePipelineStopped))
}

func TestProducer_ReadBatches(t *testing.T) {
	gates := newGates()
	var sizes []int
	record := pipeline.NewCollectionProcessor("record", func(_ context.Context, _, matched []*account, _ *pipeline.Context, r *pipeline.Response[[]*account]) (*pipeline.Response[[]*account], error) {
		sizes = append(sizes, len(matched))
		return r.OK(matched), nil
	}, quiet(gates)...)
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.AddProcessor(capitalize(gates), "Balance > 10"))
	require.NoError(t, p.AddProcessor(record, ""))
	require.NoError(t, p.Init())

	got, err := NewProducer(seeded(gates), p).ReadBatches(context.Background(), "", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALICE", "bob", "CAROL"}, owners(got))
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestProducer_ReadBatchesStops(t *testing.T) {
	gates := newGates()
	calls := 0
	stop := pipeline.NewCollectionProcessor("stop", func(_ context.Context, _, _ []*account, _ *pipeline.Context, r *pipeline.Response[[]*account]) (*pipeline.Response[[]*account], error) {
		calls++
		return r.SetError(pipeline.StopWithError, fmt.Errorf("quota exceeded")), nil
	}, quiet(gates)...)
	p := pipeline.NewCollectionPipeline[*account]("accounts", quiet(gates)...)
	require.NoError(t, p.AddProcessor(stop, ""))
	require.NoError(t, p.Init())

	_, err := NewProducer(seeded(gates), p).ReadBatches(context.Background(), "", 1, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePipelineStopped))
	assert.Equal(t, 1, calls, "the first failing batch ends the read")
}

func TestEntityProducer_ReadEachWorkers(t *testing.T) {
	gates := newGates()
	var inFlight, peak int32
	slow := pipeline.NewProcessor("slow", func(_ context.Context, a *account, _ *pipeline.Context, r *pipeline.Response[*account]) (*pipeline.Response[*account], error) {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		if a.Closed {
			r.Data = nil
			return r.SetState(pipeline.NullData), nil
		}
		return r.OK(a), nil
	}, quiet(gates)...)
	require.NoError(t, slow.Init())

	producer := NewEntityProducer[string, *account](seeded(gates), slow, WithWorkers(3))
	got, err := producer.ReadEach(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners(got), "results keep the fetch order")
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}
