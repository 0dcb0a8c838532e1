package comm

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	r, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, Root, r.Rank())
	assert.Equal(t, 1, r.Size())

	sum, err := r.SumToRoot(context.Background(), 0.40)
	require.NoError(t, err)
	assert.Equal(t, 0.40, sum)
	assert.NoError(t, r.Close())
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown kind", Config{Kind: "mpi"}, "unknown reducer kind 'mpi'"},
		{"identity with many ranks", Config{Kind: KindIdentity, Size: 2}, "cannot serve 2 ranks"},
		{"local needs group", Config{Kind: KindLocal, Size: 2}, "NewLocalGroup"},
		{"rank out of range", Config{Kind: KindSocketIO, Rank: 3, Size: 2}, "rank 3 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func sumAcross(t *testing.T, group []Reducer, values []float64) []float64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make([]float64, len(group))
	errs := make([]error, len(group))
	var wg sync.WaitGroup
	for i, r := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i], errs[i] = r.SumToRoot(ctx, values[i])
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "rank %d", i)
	}
	return out
}

func TestLocalGroup_TwoRanks(t *testing.T) {
	locals, err := NewLocalGroup(2)
	require.NoError(t, err)
	group := []Reducer{locals[0], locals[1]}

	// Each rank owns four blocks contributing 0.10 apiece.
	out := sumAcross(t, group, []float64{0.40, 0.40})
	assert.InDelta(t, 0.80, out[0], 1e-12)
	assert.Zero(t, out[1])
	assert.Equal(t, 1, locals[1].Rank())
	assert.Equal(t, 2, locals[0].Size())
}

func TestLocalGroup_ManyRanks(t *testing.T) {
	locals, err := NewLocalGroup(5)
	require.NoError(t, err)
	group := make([]Reducer, len(locals))
	values := make([]float64, len(locals))
	for i, l := range locals {
		group[i] = l
		values[i] = float64(i + 1)
	}
	out := sumAcross(t, group, values)
	assert.Equal(t, 15.0, out[0])
}

func TestLocal_RootTimesOut(t *testing.T) {
	locals, err := NewLocalGroup(3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locals[0].SumToRoot(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "waiting for 2 of 2 partial sums")
}

func TestNewLocalGroup_Invalid(t *testing.T) {
	_, err := NewLocalGroup(0)
	assert.ErrorContains(t, err, "invalid rank count 0")
}

func TestDecodePartial(t *testing.T) {
	p, err := decodePartial([]any{map[string]any{"rank": float64(2), "value": 0.4}})
	require.NoError(t, err)
	assert.Equal(t, partial{rank: 2, value: 0.4}, p)

	_, err = decodePartial(nil)
	assert.ErrorContains(t, err, "empty payload")
	_, err = decodePartial([]any{"0.4"})
	assert.ErrorContains(t, err, "unexpected payload type string")
	_, err = decodePartial([]any{map[string]any{"rank": 1}})
	assert.ErrorContains(t, err, "invalid value")
	_, err = decodePartial([]any{map[string]any{"rank": 1.9, "value": 0.4}})
	assert.ErrorContains(t, err, "rank must be an integer")
}

func TestAwaitAck_ResendsAfterReconnect(t *testing.T) {
	acked := make(chan struct{}, 1)
	reconnected := make(chan struct{}, 1)
	emits := make(chan struct{}, 4)
	emit := func() { emits <- struct{}{} }

	done := make(chan error, 1)
	go func() { done <- awaitAck(context.Background(), emit, acked, reconnected) }()

	<-emits
	reconnected <- struct{}{}
	select {
	case <-emits:
	case <-time.After(5 * time.Second):
		t.Fatal("partial sum was not re-sent after reconnect")
	}
	acked <- struct{}{}
	require.NoError(t, <-done)
	assert.Empty(t, emits)
}

func TestAwaitAck_TimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var calls int
	err := awaitAck(ctx, func() { calls++ }, make(chan struct{}), make(chan struct{}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestSocketIOServer_AcceptRejectsRepeatsAndRoot(t *testing.T) {
	s := &SocketIOServer{size: 3, partials: make(chan partial, 3), seen: map[int]bool{}}
	assert.True(t, s.accept(partial{rank: 1, value: 1}))
	assert.False(t, s.accept(partial{rank: 1, value: 1}))
	assert.False(t, s.accept(partial{rank: 0, value: 1}))
	assert.False(t, s.accept(partial{rank: 3, value: 1}))
	assert.Len(t, s.partials, 1)
}

// TestSocketIO_EndToEnd opens real sockets on loopback.
func TestSocketIO_EndToEnd(t *testing.T) {
	if os.Getenv("MESHFLOW_SOCKETIO_TEST") == "" {
		t.Skip("set MESHFLOW_SOCKETIO_TEST=1 to run socket.io reduction over loopback")
	}
	ctx := context.Background()

	root, err := NewSocketIOServer(ctx, Config{Kind: KindSocketIO, Size: 3, Addr: "127.0.0.1:0", Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer root.Close()

	group := []Reducer{root}
	for rank := 1; rank < 3; rank++ {
		c, err := NewSocketIOClient(ctx, Config{Kind: KindSocketIO, Rank: rank, Size: 3, Addr: root.Addr(), Timeout: 10 * time.Second})
		require.NoError(t, err)
		defer c.Close()
		group = append(group, c)
	}

	out := sumAcross(t, group, []float64{0.40, 0.40, 0.20})
	assert.InDelta(t, 1.0, out[0], 1e-12)
	assert.Zero(t, out[1])
	assert.Zero(t, out[2])
}
