// Package bf lowers scalar variable operations onto the eight-instruction
// tape machine. A Machine owns an allocation table over the tape, the
// position of the single cursor, the variable bindings and the sink that
// receives the emitted instructions.
//
// Generation is fail-fast: an error leaves the instructions emitted so far
// in the sink and the stream must be discarded.
package bf

import (
	"github.com/xplshn/bfc/pkg/ir"
)

const (
	DefaultTapeSize = 30000
	DefaultCellBits = 8
)

type Option func(*Machine)

// WithTapeSize sets the number of addressable cells.
func WithTapeSize(n int) Option { return func(m *Machine) { m.tapeSize = n } }

// WithCellBits sets the width of a cell on the target machine: 8, 16 or 32.
func WithCellBits(bits int) Option { return func(m *Machine) { m.cellBits = bits } }

type Machine struct {
	sink     ir.Sink
	alloc    *Allocator
	env      map[string]int
	cursor   int
	tapeSize int
	cellBits int
}

func New(sink ir.Sink, opts ...Option) (*Machine, error) {
	m := &Machine{
		sink:     sink,
		env:      make(map[string]int),
		tapeSize: DefaultTapeSize,
		cellBits: DefaultCellBits,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if sink == nil {
		return nil, newError(KindInvalidArgument, "new", "nil sink")
	}
	if m.tapeSize < 1 {
		return nil, newError(KindInvalidArgument, "new", "tape size %d", m.tapeSize)
	}
	if !ValidCellBits(m.cellBits) {
		return nil, newError(KindInvalidArgument, "new", "unsupported cell width %d", m.cellBits)
	}
	m.alloc = NewAllocator(m.tapeSize)
	return m, nil
}

// ValidCellBits reports whether bits is a supported cell width.
func ValidCellBits(bits int) bool { return bits == 8 || bits == 16 || bits == 32 }

func (m *Machine) TapeSize() int { return m.tapeSize }
func (m *Machine) CellBits() int { return m.cellBits }

// Modulus is the number of distinct values a cell holds.
func (m *Machine) Modulus() int64 { return int64(1) << uint(m.cellBits) }

// Regions returns the live allocations in address order.
func (m *Machine) Regions() []Region { return m.alloc.Regions() }

// Live reports the number of live allocations.
func (m *Machine) Live() int { return m.alloc.Live() }

// CheckHeap verifies the allocation table invariants.
func (m *Machine) CheckHeap() error { return m.alloc.Check() }

func (m *Machine) Malloc(size int) (int, error) { return m.alloc.Malloc(size) }

// Calloc allocates size cells and emits code clearing each one. Released
// cells keep whatever value they held, so reuse has to zero them.
func (m *Machine) Calloc(size int) (int, error) {
	addr, err := m.alloc.Malloc(size)
	if err != nil {
		return 0, err
	}
	for i := 0; i < size; i++ {
		if err := m.SetCell(addr+i, 0); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

func (m *Machine) Dealloc(addr int) error { return m.alloc.Dealloc(addr) }
