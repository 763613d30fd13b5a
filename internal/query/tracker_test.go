package query

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "s:1|products|list", Key("s:1", "products", "list"))
}

func TestRun_loaded(t *testing.T) {
	tr := NewTracker()
	key := Key("s:1", "products", "list")
	assert.False(t, tr.Loading(key))

	res, err := Run(context.Background(), tr, key, "products", func(context.Context) (int, error) {
		assert.True(t, tr.Loading(key))
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StateLoaded, res.State)
	assert.Equal(t, 7, res.Value)
	assert.False(t, tr.Loading(key))
	assert.Equal(t, 0, tr.InFlight())
}

func TestRun_error(t *testing.T) {
	tr := NewTracker()
	key := Key("s:1", "products", "list")
	boom := errors.New("boom")

	res, err := Run(context.Background(), tr, key, "products", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.StateError, res.State)
	assert.Equal(t, boom, res.Err)
	assert.Equal(t, 0, tr.InFlight())
}

func TestRun_newerReadSupersedesOlder(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	tr := NewTracker(WithMetrics(metrics))
	key := Key("s:1", "products", "list")

	started := make(chan struct{})
	oldDone := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), tr, key, "products", func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "page 1", ctx.Err()
		})
		oldDone <- err
	}()

	<-started
	res, err := Run(context.Background(), tr, key, "products", func(context.Context) (string, error) {
		return "page 2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "page 2", res.Value)

	select {
	case err := <-oldDone:
		assert.True(t, model.IsCode(err, model.ErrSuperseded), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("superseded read was not cancelled")
	}
	assert.Equal(t, model.StateLoaded, res.State)
	assert.Equal(t, 0, tr.InFlight())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SupersededQueriesTotal.WithLabelValues("products")))
}

func TestRun_lateSuccessIsStillDiscarded(t *testing.T) {
	tr := NewTracker()
	key := Key("s:1", "vendors", "detail")

	ctx1, first := tr.Begin(context.Background(), key)
	_, second := tr.Begin(context.Background(), key)

	assert.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.False(t, first.Settle(), "older read must not settle")
	assert.True(t, tr.Loading(key))
	assert.True(t, second.Settle())
	assert.False(t, tr.Loading(key))
}

func TestRun_differentKeysAreIndependent(t *testing.T) {
	tr := NewTracker()
	ctxA, a := tr.Begin(context.Background(), Key("s:1", "products", "list"))
	ctxB, b := tr.Begin(context.Background(), Key("s:2", "products", "list"))
	ctxC, c := tr.Begin(context.Background(), Key("s:1", "products", "detail"))

	assert.NoError(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
	assert.NoError(t, ctxC.Err())
	assert.Equal(t, 3, tr.InFlight())
	assert.True(t, a.Settle())
	assert.True(t, b.Settle())
	assert.True(t, c.Settle())
}

func TestForget(t *testing.T) {
	tr := NewTracker()
	ctx, tk := tr.Begin(context.Background(), Key("s:1", "products", "list"))
	_, other := tr.Begin(context.Background(), Key("s:2", "products", "list"))

	tr.Forget("s:1")

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, tk.Settle())
	assert.False(t, tr.Loading(Key("s:1", "products", "list")))
	assert.True(t, other.Settle())
}

func TestRun_settledReadsLeaveNothingBehind(t *testing.T) {
	tr := NewTracker()
	for i := range 100 {
		key := Key("s:"+strconv.Itoa(i), "products", "list")
		_, err := Run(context.Background(), tr, key, "products", func(context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, tr.InFlight())
}
