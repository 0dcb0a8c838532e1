// Package mesh lays a uniform two-dimensional mesh out as blocks and
// distributes them across ranks.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/device"
	"github.com/vk/meshflow/internal/state"
)

// ErrTooFewBlocks is returned when there are fewer blocks than ranks.
var ErrTooFewBlocks = errors.New("too few mesh blocks")

// Config describes the global mesh and its block decomposition.
type Config struct {
	NX1, NX2     int
	X1Min, X1Max float64
	X2Min, X2Max float64
	MBNX1, MBNX2 int
}

// Validate checks the mesh extents and that blocks tile the mesh exactly.
func (c Config) Validate() error {
	if c.NX1 < 1 || c.NX2 < 1 {
		return fmt.Errorf("mesh cell counts must be positive, got %dx%d", c.NX1, c.NX2)
	}
	if c.MBNX1 < 1 || c.MBNX2 < 1 {
		return fmt.Errorf("meshblock cell counts must be positive, got %dx%d", c.MBNX1, c.MBNX2)
	}
	if c.X1Max <= c.X1Min || c.X2Max <= c.X2Min {
		return fmt.Errorf("mesh bounds are empty: [%g,%g]x[%g,%g]", c.X1Min, c.X1Max, c.X2Min, c.X2Max)
	}
	if c.NX1%c.MBNX1 != 0 {
		return fmt.Errorf("mesh nx1 (%d) must be divisible by meshblock nx1 (%d)", c.NX1, c.MBNX1)
	}
	if c.NX2%c.MBNX2 != 0 {
		return fmt.Errorf("mesh nx2 (%d) must be divisible by meshblock nx2 (%d)", c.NX2, c.MBNX2)
	}
	return nil
}

// NBTotal is the number of blocks in the whole mesh.
func (c Config) NBTotal() int { return (c.NX1 / c.MBNX1) * (c.NX2 / c.MBNX2) }

// Layout places this process among the ranks of a run.
type Layout struct {
	Rank  int
	Ranks int
	// Async gives every block an asynchronous execution stream instead of
	// running kernels inline.
	Async       bool
	StreamDepth int
}

// Block is one rectangular piece of the mesh owned by a single rank.
type Block struct {
	GID  int
	LID  int
	Rank int

	NX1, NX2     int
	X1Min, X1Max float64
	X2Min, X2Max float64
	DX1, DX2     float64

	Container *Container
	Space     device.Space
}

// CellCenter returns the coordinates of cell (i, j).
func (b *Block) CellCenter(i, j int) (x1, x2 float64) {
	return b.X1Min + (float64(i)+0.5)*b.DX1, b.X2Min + (float64(j)+0.5)*b.DX2
}

// Mesh is the set of blocks local to this rank plus the global layout.
type Mesh struct {
	cfg      Config
	layout   Layout
	packages *state.Packages
	resolved *state.Schema

	ranklist []int
	nslist   []int
	nblist   []int
	blocks   []*Block

	processed atomic.Int64
}

// New builds the blocks this rank owns and instantiates their storage from
// the resolved schema.
func New(ctx context.Context, cfg Config, layout Layout, packages *state.Packages, resolved *state.Schema) (*Mesh, error) {
	logger := ctxlog.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mesh: %w", err)
	}
	if layout.Ranks < 1 {
		layout.Ranks = 1
	}
	if layout.Rank < 0 || layout.Rank >= layout.Ranks {
		return nil, fmt.Errorf("rank %d out of range [0,%d)", layout.Rank, layout.Ranks)
	}
	nbtotal := cfg.NBTotal()
	if nbtotal < layout.Ranks {
		return nil, fmt.Errorf("%w: nbtotal (%d) < nranks (%d)", ErrTooFewBlocks, nbtotal, layout.Ranks)
	}

	m := &Mesh{cfg: cfg, layout: layout, packages: packages, resolved: resolved}
	m.ranklist, m.nslist, m.nblist = LoadBalance(nbtotal, layout.Ranks)

	nbx1 := cfg.NX1 / cfg.MBNX1
	dx1 := (cfg.X1Max - cfg.X1Min) / float64(cfg.NX1)
	dx2 := (cfg.X2Max - cfg.X2Min) / float64(cfg.NX2)

	first := m.nslist[layout.Rank]
	for lid := range m.nblist[layout.Rank] {
		gid := first + lid
		bi, bj := gid%nbx1, gid/nbx1
		b := &Block{
			GID:   gid,
			LID:   lid,
			Rank:  layout.Rank,
			NX1:   cfg.MBNX1,
			NX2:   cfg.MBNX2,
			X1Min: cfg.X1Min + float64(bi*cfg.MBNX1)*dx1,
			X1Max: cfg.X1Min + float64((bi+1)*cfg.MBNX1)*dx1,
			X2Min: cfg.X2Min + float64(bj*cfg.MBNX2)*dx2,
			X2Max: cfg.X2Min + float64((bj+1)*cfg.MBNX2)*dx2,
			DX1:   dx1,
			DX2:   dx2,

			Container: newContainer(resolved, cfg.MBNX1, cfg.MBNX2),
		}
		if layout.Async {
			b.Space = device.NewStream(layout.StreamDepth)
		} else {
			b.Space = &device.Serial{}
		}
		m.blocks = append(m.blocks, b)
	}

	logger.Debug("Mesh built",
		"rank", layout.Rank,
		"nbtotal", nbtotal,
		"localBlocks", len(m.blocks),
		"firstGID", first,
	)
	return m, nil
}

// LoadBalance splits nbtotal equal-cost blocks into contiguous gid ranges,
// one per rank. ranklist maps gid to rank; nslist and nblist give each
// rank's first gid and block count. Leftover blocks go to the lowest ranks.
func LoadBalance(nbtotal, nranks int) (ranklist, nslist, nblist []int) {
	ranklist = make([]int, nbtotal)
	nslist = make([]int, nranks)
	nblist = make([]int, nranks)

	base, extra := nbtotal/nranks, nbtotal%nranks
	start := 0
	for r := range nranks {
		n := base
		if r < extra {
			n++
		}
		nslist[r], nblist[r] = start, n
		for gid := start; gid < start+n; gid++ {
			ranklist[gid] = r
		}
		start += n
	}
	return ranklist, nslist, nblist
}

// Blocks returns the blocks owned by this rank in gid order.
func (m *Mesh) Blocks() []*Block { return m.blocks }

func (m *Mesh) Config() Config { return m.cfg }
func (m *Mesh) Rank() int      { return m.layout.Rank }
func (m *Mesh) Ranks() int     { return m.layout.Ranks }
func (m *Mesh) NBTotal() int   { return m.cfg.NBTotal() }

// Owner returns the rank owning gid.
func (m *Mesh) Owner(gid int) (int, bool) {
	if gid < 0 || gid >= len(m.ranklist) {
		return 0, false
	}
	return m.ranklist[gid], true
}

// Packages returns the package schemas the mesh was built for.
func (m *Mesh) Packages() *state.Packages { return m.packages }

// Resolved returns the schema every block's storage was laid out from.
func (m *Mesh) Resolved() *state.Schema { return m.resolved }

// AddProcessed counts n more blocks as processed.
func (m *Mesh) AddProcessed(n int) { m.processed.Add(int64(n)) }

// MBCount is the number of blocks processed so far.
func (m *Mesh) MBCount() int64 { return m.processed.Load() }

// Close releases every block's execution space.
func (m *Mesh) Close() {
	for _, b := range m.blocks {
		b.Space.Close()
	}
}
