package nvram

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// Medium is the collaborator interface for the concrete NV programming
// driver: a word-addressable region that starts fully erased
// (every byte 0xff) and can only ever have bits cleared (1→0) between
// erases, exactly like NOR flash. It is deliberately narrow so the engine
// never depends on a particular storage technology.
type Medium interface {
	Size() uint32
	ReadAt(off uint32, buf []byte) error
	// Program clears bits: medium[off+i] &= data[i]. The caller must
	// ensure off+len(data) <= Size().
	Program(off uint32, data []byte) error
	// Erase resets [off, off+length) to 0xff.
	Erase(off, length uint32) error
}

// FileMedium is a Medium backed by an afero filesystem, giving the card a
// real on-disk NV image without a hardware flash driver: afero.NewOsFs()
// for a production image file, afero.NewMemMapFs() for tests.
type FileMedium struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	size uint32
	buf  []byte
}

// OpenFileMedium opens (creating if absent) a size-byte NV image at path on
// fs. A freshly created image is fully erased.
func OpenFileMedium(fs afero.Fs, path string, size uint32) (*FileMedium, error) {
	m := &FileMedium{fs: fs, path: path, size: size, buf: make([]byte, size)}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("nvram: stat image: %w", err)
	}
	if !exists {
		for i := range m.buf {
			m.buf[i] = 0xff
		}
		if err := afero.WriteFile(fs, path, m.buf, 0o600); err != nil {
			return nil, fmt.Errorf("nvram: create image: %w", err)
		}
		return m, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("nvram: read image: %w", err)
	}
	if uint32(len(data)) != size {
		return nil, fmt.Errorf("nvram: image %s has size %d, expected %d", path, len(data), size)
	}
	copy(m.buf, data)
	return m, nil
}

func (m *FileMedium) Size() uint32 { return m.size }

func (m *FileMedium) ReadAt(off uint32, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(off)+uint64(len(buf)) > uint64(m.size) {
		return fmt.Errorf("nvram: read out of range at %d len %d", off, len(buf))
	}
	copy(buf, m.buf[off:int(off)+len(buf)])
	return nil
}

func (m *FileMedium) Program(off uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(off)+uint64(len(data)) > uint64(m.size) {
		return fmt.Errorf("nvram: program out of range at %d len %d", off, len(data))
	}
	for i, b := range data {
		m.buf[int(off)+i] &= b
	}
	return m.flushLocked()
}

func (m *FileMedium) Erase(off, length uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(off)+uint64(length) > uint64(m.size) {
		return fmt.Errorf("nvram: erase out of range at %d len %d", off, length)
	}
	for i := uint32(0); i < length; i++ {
		m.buf[off+i] = 0xff
	}
	return m.flushLocked()
}

func (m *FileMedium) flushLocked() error {
	return afero.WriteFile(m.fs, m.path, m.buf, 0o600)
}
