package comm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	sioclient "github.com/zishang520/socket.io-client-go/socket"
	sio "github.com/zishang520/socket.io/v2/socket"
)

const (
	eventPartialSum = "partial_sum"
	eventAck        = "ack"
)

type partial struct {
	rank  int
	value float64
}

// SocketIOServer is the root side of a distributed reduction. It accepts
// one partial sum per non-root rank over socket.io.
type SocketIOServer struct {
	size    int
	timeout time.Duration

	srv      *http.Server
	ln       net.Listener
	partials chan partial

	mu   sync.Mutex
	seen map[int]bool
}

// NewSocketIOServer starts listening on cfg.Addr immediately so that
// clients may deliver their partial sums before the root reaches
// SumToRoot.
func NewSocketIOServer(ctx context.Context, cfg Config) (*SocketIOServer, error) {
	logger := ctxlog.FromContext(ctx).With("reducer", KindSocketIO, "rank", Root)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for partial sums on '%s': %w", cfg.Addr, err)
	}

	s := &SocketIOServer{
		size:     cfg.Size,
		timeout:  cfg.Timeout,
		ln:       ln,
		partials: make(chan partial, cfg.Size),
		seen:     make(map[int]bool),
	}

	io := sio.NewServer(nil, nil)
	io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*sio.Socket)
		if !ok {
			return
		}
		logger.Debug("Rank connected", "sid", client.Id())
		client.On(eventPartialSum, func(args ...any) {
			p, err := decodePartial(args)
			if err != nil {
				logger.Warn("Discarding malformed partial sum", "sid", client.Id(), "error", err)
				return
			}
			if s.accept(p) {
				logger.Debug("Received partial sum", "from", p.rank, "value", p.value)
			} else {
				logger.Warn("Ignoring repeated partial sum", "from", p.rank)
			}
			client.Emit(eventAck, p.rank)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", io.ServeHandler(nil))
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Reduction endpoint stopped", "error", err)
		}
	}()
	logger.Info("Reduction endpoint listening", "addr", s.Addr(), "ranks", cfg.Size)
	return s, nil
}

// accept records p unless its rank already reported or is out of range.
func (s *SocketIOServer) accept(p partial) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.rank <= Root || p.rank >= s.size || s.seen[p.rank] {
		return false
	}
	s.seen[p.rank] = true
	s.partials <- p
	return true
}

// Addr returns the address the endpoint listens on.
func (s *SocketIOServer) Addr() string { return s.ln.Addr().String() }

func (s *SocketIOServer) Rank() int { return Root }
func (s *SocketIOServer) Size() int { return s.size }

// SumToRoot implements Reducer.
func (s *SocketIOServer) SumToRoot(ctx context.Context, v float64) (float64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	sum := v
	for received := 1; received < s.size; received++ {
		select {
		case p := <-s.partials:
			sum += p.value
		case <-ctx.Done():
			return 0, fmt.Errorf("root waiting for %d of %d partial sums: %w", s.size-received, s.size-1, ctx.Err())
		}
	}
	return sum, nil
}

// Close stops the endpoint.
func (s *SocketIOServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// SocketIOClient is a non-root rank of a distributed reduction.
type SocketIOClient struct {
	rank    int
	size    int
	timeout time.Duration

	io          *sioclient.Socket
	connected   chan struct{}
	reconnected chan struct{}
	acked       chan struct{}
	once        sync.Once
}

// NewSocketIOClient connects to the root at cfg.Addr. The connection is
// retried in the background until SumToRoot gives up.
func NewSocketIOClient(ctx context.Context, cfg Config) (*SocketIOClient, error) {
	logger := ctxlog.FromContext(ctx).With("reducer", KindSocketIO, "rank", cfg.Rank)

	opts := sioclient.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := sioclient.NewManager("http://"+cfg.Addr, opts)
	c := &SocketIOClient{
		rank:      cfg.Rank,
		size:      cfg.Size,
		timeout:   cfg.Timeout,
		io:        manager.Socket("/", opts),
		connected:   make(chan struct{}),
		reconnected: make(chan struct{}, 1),
		acked:       make(chan struct{}, 1),
	}

	c.io.On("connect", func(...any) {
		logger.Debug("Connected to root", "sid", c.io.Id())
		c.once.Do(func() { close(c.connected) })
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	})
	c.io.On("connect_error", func(errs ...any) {
		logger.Debug("Root not reachable yet", "addr", cfg.Addr, "detail", errs)
	})
	c.io.On(eventAck, func(...any) {
		select {
		case c.acked <- struct{}{}:
		default:
		}
	})
	c.io.Connect()
	return c, nil
}

func (c *SocketIOClient) Rank() int { return c.rank }
func (c *SocketIOClient) Size() int { return c.size }

// SumToRoot implements Reducer.
func (c *SocketIOClient) SumToRoot(ctx context.Context, v float64) (float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	select {
	case <-c.connected:
	case <-ctx.Done():
		return 0, fmt.Errorf("rank %d: timed out while waiting for connection to root: %w", c.rank, ctx.Err())
	}

	// The first connect is consumed here; later ones mean the link dropped.
	select {
	case <-c.reconnected:
	default:
	}

	emit := func() {
		c.io.Emit(eventPartialSum, map[string]any{"rank": c.rank, "value": v})
	}
	if err := awaitAck(ctx, emit, c.acked, c.reconnected); err != nil {
		return 0, fmt.Errorf("rank %d: timed out after connecting while waiting for '%s': %w", c.rank, eventAck, err)
	}
	return 0, nil
}

// awaitAck emits once, then again after every reconnect, until an ack
// arrives or ctx ends. The root ignores repeats of an accepted rank.
func awaitAck(ctx context.Context, emit func(), acked, reconnected <-chan struct{}) error {
	emit()
	for {
		select {
		case <-acked:
			return nil
		case <-reconnected:
			emit()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close disconnects from the root.
func (c *SocketIOClient) Close() error {
	c.io.Disconnect()
	return nil
}

func decodePartial(args []any) (partial, error) {
	if len(args) == 0 {
		return partial{}, errors.New("empty payload")
	}
	m, ok := args[0].(map[string]any)
	if !ok {
		return partial{}, fmt.Errorf("unexpected payload type %T", args[0])
	}
	rank, ok := number(m["rank"])
	if !ok {
		return partial{}, fmt.Errorf("missing or invalid rank: %v", m["rank"])
	}
	value, ok := number(m["value"])
	if !ok {
		return partial{}, fmt.Errorf("missing or invalid value: %v", m["value"])
	}
	if rank != math.Trunc(rank) {
		return partial{}, fmt.Errorf("rank must be an integer: %v", m["rank"])
	}
	return partial{rank: int(rank), value: value}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
