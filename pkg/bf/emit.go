package bf

import "github.com/xplshn/bfc/pkg/ir"

// Cursor returns the address the machine pointer is on.
func (m *Machine) Cursor() int { return m.cursor }

func (m *Machine) emit(op ir.Op, count int) error {
	if count <= 0 {
		return nil
	}
	if err := m.sink.Emit(op, count); err != nil {
		return &Error{Kind: KindSink, Op: "emit", Err: err}
	}
	return nil
}

// MoveTo walks the cursor to addr. Nothing is emitted when the cursor is
// already there.
func (m *Machine) MoveTo(addr int) error {
	if addr < 0 || addr >= m.tapeSize {
		return newError(KindOutOfBounds, "move", "address %d outside [0, %d)", addr, m.tapeSize)
	}
	var err error
	if addr > m.cursor {
		err = m.emit(ir.OpRight, addr-m.cursor)
	} else {
		err = m.emit(ir.OpLeft, m.cursor-addr)
	}
	if err != nil {
		return err
	}
	m.cursor = addr
	return nil
}

// SetCell clears the cell at addr and increments it value times. Values
// past the cell width wrap when the program runs.
func (m *Machine) SetCell(addr int, value int64) error {
	if value < 0 {
		return newError(KindInvalidArgument, "set", "negative value %d", value)
	}
	if err := m.MoveTo(addr); err != nil {
		return err
	}
	if err := m.emit(ir.OpLoopOpen, 1); err != nil {
		return err
	}
	if err := m.emit(ir.OpDec, 1); err != nil {
		return err
	}
	if err := m.emit(ir.OpLoopClose, 1); err != nil {
		return err
	}
	return m.emit(ir.OpInc, int(value))
}

func (m *Machine) EmitOut(addr int) error { return m.at(addr, ir.OpOut) }

func (m *Machine) EmitIn(addr int) error { return m.at(addr, ir.OpIn) }

// at emits a single op on the cell at addr.
func (m *Machine) at(addr int, op ir.Op) error {
	if err := m.MoveTo(addr); err != nil {
		return err
	}
	return m.emit(op, 1)
}

// loop emits `[ body ]` on the cell at addr. The cursor is brought back to
// addr before the closing bracket so every iteration starts in the same
// place.
func (m *Machine) loop(addr int, body func() error) error {
	if err := m.at(addr, ir.OpLoopOpen); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	return m.at(addr, ir.OpLoopClose)
}
