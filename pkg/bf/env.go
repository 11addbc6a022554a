package bf

import "sort"

// Declare binds name to a fresh one-cell allocation if it is not bound yet
// and returns its address. Nothing is emitted; the cell's value is
// whatever the tape held.
func (m *Machine) Declare(name string) (int, error) {
	if addr, ok := m.env[name]; ok {
		return addr, nil
	}
	addr, err := m.alloc.Malloc(1)
	if err != nil {
		return 0, err
	}
	m.env[name] = addr
	return addr, nil
}

// Assign sets name to value, binding it on first use. Reassignment reuses
// the existing cell.
func (m *Machine) Assign(name string, value int64) error {
	addr, err := m.Declare(name)
	if err != nil {
		return err
	}
	return m.SetCell(addr, value)
}

// Free releases the cell bound to name and forgets the binding.
func (m *Machine) Free(name string) error {
	addr, ok := m.env[name]
	if !ok {
		return newError(KindUnboundName, "free", "variable '%s' is not defined", name)
	}
	if err := m.alloc.Dealloc(addr); err != nil {
		return err
	}
	delete(m.env, name)
	return nil
}

// PutVariable emits code printing the cell bound to name.
func (m *Machine) PutVariable(name string) error {
	addr, ok := m.env[name]
	if !ok {
		return newError(KindUnboundName, "putv", "variable '%s' is not defined", name)
	}
	return m.EmitOut(addr)
}

func (m *Machine) AddressOf(name string) (int, error) {
	addr, ok := m.env[name]
	if !ok {
		return 0, newError(KindUnboundName, "lookup", "variable '%s' is not defined", name)
	}
	return addr, nil
}

func (m *Machine) Bound(name string) bool {
	_, ok := m.env[name]
	return ok
}

// Names returns the bound variable names in sorted order.
func (m *Machine) Names() []string {
	names := make([]string, 0, len(m.env))
	for name := range m.env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
