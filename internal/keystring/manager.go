package keystring

import (
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// Manager stores and erases the three keystrings as DO cells (C3). Unlike
// a plain DO, a keystring cell can be *truncated* in place to a
// length-only byte once every private-key role holds a key: the full
// SHA-1 is then redundant, and erasing it denies an offline attacker the
// NV pool as an oracle.
type Manager struct {
	pool *nvram.Pool
	nr   map[Role]byte

	ref  map[Role]nvram.Ref
	full map[Role]Keystring
}

// NewManager binds a manager to the DO numbers the card assigns each
// role's keystring cell.
func NewManager(pool *nvram.Pool, nr map[Role]byte) *Manager {
	return &Manager{
		pool: pool,
		nr:   nr,
		ref:  make(map[Role]nvram.Ref),
		full: make(map[Role]Keystring),
	}
}

// ObserveCell folds in a DO cell seen during a pool scan, returning true
// if its nr matched one of this manager's roles.
func (m *Manager) ObserveCell(nr byte, ref nvram.Ref, payload []byte) bool {
	for role, want := range m.nr {
		if want != nr {
			continue
		}
		m.ref[role] = ref
		if len(payload) == Size {
			var b [Size]byte
			copy(b[:], payload)
			m.full[role] = FromBytes(b)
		} else {
			delete(m.full, role)
		}
		return true
	}
	return false
}

// Get returns the cached full keystring for role, if one is currently
// stored (not truncated, not erased).
func (m *Manager) Get(role Role) (Keystring, bool) {
	ks, ok := m.full[role]
	return ks, ok
}

// Ref returns role's current live cell reference, used by compaction to
// read the cell's raw (full or truncated) payload forward verbatim.
func (m *Manager) Ref(role Role) (nvram.Ref, bool) {
	ref, ok := m.ref[role]
	return ref, ok
}

// Store replaces role's keystring cell with the full 21-byte record.
func (m *Manager) Store(role Role, ks Keystring) error {
	if err := m.release(role); err != nil {
		return err
	}
	b := ks.Bytes()
	ref, err := m.pool.Append(m.nr[role], b[:])
	if err != nil {
		return err
	}
	m.ref[role] = ref
	m.full[role] = ks
	return nil
}

// Truncate replaces role's keystring cell with a length-only byte,
// discarding the SHA-1 digest.
func (m *Manager) Truncate(role Role, length byte) error {
	if err := m.release(role); err != nil {
		return err
	}
	ref, err := m.pool.Append(m.nr[role], []byte{length})
	if err != nil {
		return err
	}
	m.ref[role] = ref
	delete(m.full, role)
	return nil
}

// Erase releases role's keystring cell entirely, leaving no record.
func (m *Manager) Erase(role Role) error {
	if err := m.release(role); err != nil {
		return err
	}
	delete(m.full, role)
	delete(m.ref, role)
	return nil
}

func (m *Manager) release(role Role) error {
	ref, ok := m.ref[role]
	if !ok || ref == 0 {
		return nil
	}
	return m.pool.Release(ref)
}
