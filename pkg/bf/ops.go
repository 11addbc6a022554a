package bf

import "github.com/xplshn/bfc/pkg/ir"

// drain emits a loop that empties from, applying op to to once per unit.
func (m *Machine) drain(from, to int, op ir.Op) error {
	return m.loop(from, func() error {
		if err := m.at(from, ir.OpDec); err != nil {
			return err
		}
		return m.at(to, op)
	})
}

// live rejects operands outside every live region, so scratch cells taken
// by an operation can never alias them.
func (m *Machine) live(op string, addrs ...int) error {
	for _, addr := range addrs {
		if !m.alloc.Covers(addr) {
			return newError(KindUnknownAddress, op, "cell %d is not allocated", addr)
		}
	}
	return nil
}

// Copy makes dest equal to src, leaving src unchanged. The value is moved
// into dest and a cleared scratch cell, then moved back from the scratch
// cell into src.
func (m *Machine) Copy(src, dest int) error {
	if src == dest {
		return newError(KindInvalidArgument, "copy", "can't copy cell %d onto itself", src)
	}
	if err := m.live("copy", src, dest); err != nil {
		return err
	}
	temp, err := m.Calloc(1)
	if err != nil {
		return err
	}
	if err := m.SetCell(dest, 0); err != nil {
		return err
	}
	err = m.loop(src, func() error {
		if err := m.at(src, ir.OpDec); err != nil {
			return err
		}
		if err := m.at(dest, ir.OpInc); err != nil {
			return err
		}
		return m.at(temp, ir.OpInc)
	})
	if err != nil {
		return err
	}
	if err := m.drain(temp, src, ir.OpInc); err != nil {
		return err
	}
	return m.alloc.Dealloc(temp)
}

// Add stores lhs+rhs into out. out may be either operand.
func (m *Machine) Add(lhs, rhs, out int) error { return m.accumulate("add", lhs, rhs, out, ir.OpInc) }

// Sub stores lhs-rhs into out. out may be either operand.
func (m *Machine) Sub(lhs, rhs, out int) error { return m.accumulate("sub", lhs, rhs, out, ir.OpDec) }

func (m *Machine) accumulate(name string, lhs, rhs, out int, op ir.Op) error {
	if err := m.live(name, lhs, rhs, out); err != nil {
		return err
	}
	left, err := m.alloc.Malloc(1)
	if err != nil {
		return err
	}
	right, err := m.alloc.Malloc(1)
	if err != nil {
		return err
	}
	if err := m.Copy(lhs, left); err != nil {
		return err
	}
	if err := m.Copy(rhs, right); err != nil {
		return err
	}
	if err := m.Copy(left, out); err != nil {
		return err
	}
	if err := m.drain(right, out, op); err != nil {
		return err
	}
	if err := m.alloc.Dealloc(left); err != nil {
		return err
	}
	return m.alloc.Dealloc(right)
}

// Mul stores lhs*rhs into out. The product is built in a cleared
// accumulator by adding rhs once per unit of a copy of lhs, so out may be
// either operand.
func (m *Machine) Mul(lhs, rhs, out int) error {
	if err := m.live("mul", lhs, rhs, out); err != nil {
		return err
	}
	acc, err := m.Calloc(1)
	if err != nil {
		return err
	}
	count, err := m.alloc.Malloc(1)
	if err != nil {
		return err
	}
	if err := m.Copy(lhs, count); err != nil {
		return err
	}
	err = m.loop(count, func() error {
		if err := m.at(count, ir.OpDec); err != nil {
			return err
		}
		t, err := m.alloc.Malloc(1)
		if err != nil {
			return err
		}
		if err := m.Copy(rhs, t); err != nil {
			return err
		}
		if err := m.drain(t, acc, ir.OpInc); err != nil {
			return err
		}
		return m.alloc.Dealloc(t)
	})
	if err != nil {
		return err
	}
	if err := m.Copy(acc, out); err != nil {
		return err
	}
	if err := m.alloc.Dealloc(count); err != nil {
		return err
	}
	return m.alloc.Dealloc(acc)
}

// PutString emits code printing each byte of text through one scratch cell.
func (m *Machine) PutString(text string) error {
	scratch, err := m.alloc.Malloc(1)
	if err != nil {
		return err
	}
	for i := 0; i < len(text); i++ {
		if err := m.SetCell(scratch, int64(text[i])); err != nil {
			return err
		}
		if err := m.emit(ir.OpOut, 1); err != nil {
			return err
		}
	}
	return m.alloc.Dealloc(scratch)
}
