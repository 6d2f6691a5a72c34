package nvram

import (
	"errors"
	"fmt"
)

// ErrOOM is returned by Append when the active bank has no room left; the
// caller (the card's C6 compact step) must compact before retrying.
var ErrOOM = errors.New("nvram: pool out of space")

// Ref addresses a cell by its absolute byte offset in the medium.
type Ref uint32

const superblockLen = 2

var (
	bank0Marker = [2]byte{0xaa, 0xaa}
	bank1Marker = [2]byte{0x55, 0x55}
)

// Pool is the append-only cell log (C1): two erase-block-sized banks used
// ping-pong, a live bank being appended to while the other sits erased (or
// holds the previous generation until the next compaction commits).
type Pool struct {
	medium Medium
	active int // 0 or 1
	tail   uint32 // offset from the active bank's base
	bank   [2]uint32
	size   uint32 // per-bank size
}

// Open reads the superblock to determine the active bank, then positions
// the write tail at the first empty header found by scanning from the
// start of that bank. Scan (in the card layer) is expected to be run right
// after Open to rebuild the volatile indices from the same walk.
func Open(medium Medium) (*Pool, error) {
	total := medium.Size()
	if total < superblockLen+4 {
		return nil, fmt.Errorf("nvram: medium too small (%d bytes)", total)
	}
	bankSize := (total - superblockLen) / 2

	var sb [2]byte
	if err := medium.ReadAt(0, sb[:]); err != nil {
		return nil, err
	}

	p := &Pool{
		medium: medium,
		bank:   [2]uint32{superblockLen, superblockLen + bankSize},
		size:   bankSize,
	}
	switch sb {
	case bank1Marker:
		p.active = 1
	default:
		p.active = 0
	}

	tail, err := p.findTail(p.active)
	if err != nil {
		return nil, err
	}
	p.tail = tail
	return p, nil
}

// findTail walks bank from offset 0 until an empty (unprogrammed) header is
// found, returning that offset.
func (p *Pool) findTail(bank int) (uint32, error) {
	var off uint32
	for {
		if off+2 > p.size {
			return 0, fmt.Errorf("nvram: bank %d has no room for a tail marker", bank)
		}
		var hdr [2]byte
		if err := p.medium.ReadAt(p.bank[bank]+off, hdr[:]); err != nil {
			return 0, err
		}
		h := DecodeHeader(hdr[0], hdr[1])
		if h.Kind == KindEmpty {
			return off, nil
		}
		off += uint32(cellTotalLen(h))
	}
}

// Append writes a DO cell to the tail of the active bank.
func (p *Pool) Append(nr byte, payload []byte) (Ref, error) {
	cell, err := EncodeDOCell(nr, payload)
	if err != nil {
		return 0, err
	}
	return p.appendRaw(cell)
}

// AppendRawCell writes a pre-encoded cell (e.g. a DSC, bool, or counter
// cell built via the Encode* helpers in cell.go) to the tail.
func (p *Pool) AppendRawCell(cell []byte) (Ref, error) {
	return p.appendRaw(cell)
}

func (p *Pool) appendRaw(cell []byte) (Ref, error) {
	if p.tail+uint32(len(cell)) > p.size {
		return 0, ErrOOM
	}
	off := p.bank[p.active] + p.tail
	if err := p.medium.Program(off, cell); err != nil {
		return 0, err
	}
	ref := Ref(off)
	p.tail += uint32(len(cell))
	return ref, nil
}

// Release overwrites ref's two-byte header with 0x0000.
func (p *Pool) Release(ref Ref) error {
	return p.medium.Program(uint32(ref), []byte{0x00, 0x00})
}

// ProgramAt issues a raw in-place bit-clearing write at an absolute medium
// offset. Used for the PIN-error counter's unary encoding (§4.2), which
// updates a live cell's trailing bytes in place rather than appending a
// new cell for every increment.
func (p *Pool) ProgramAt(off uint32, data []byte) error {
	return p.medium.Program(off, data)
}

// ReadCell decodes the header at ref and returns it along with its
// payload, letting a caller re-read one live cell (e.g. a VAR DO) without
// rescanning the whole bank.
func (p *Pool) ReadCell(ref Ref) (Header, []byte, error) {
	var hdr [2]byte
	if err := p.medium.ReadAt(uint32(ref), hdr[:]); err != nil {
		return Header{}, nil, err
	}
	h := DecodeHeader(hdr[0], hdr[1])
	if h.PayloadLen == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.PayloadLen)
	if err := p.medium.ReadAt(uint32(ref)+2, payload); err != nil {
		return Header{}, nil, err
	}
	return h, payload, nil
}

// Visitor is called once per live (or released) cell encountered during a
// scan, in physical order. Returning an error aborts the scan.
type Visitor func(ref Ref, h Header, payload []byte) error

// Scan walks the active bank from its start, decoding every cell and
// invoking visit, until the tail (an empty header) is reached.
func (p *Pool) Scan(visit Visitor) error {
	return p.scanBank(p.active, visit)
}

func (p *Pool) scanBank(bank int, visit Visitor) error {
	var off uint32
	for {
		if off+2 > p.size {
			return fmt.Errorf("nvram: bank %d overran without an empty tail", bank)
		}
		absHdr := p.bank[bank] + off
		var hdr [2]byte
		if err := p.medium.ReadAt(absHdr, hdr[:]); err != nil {
			return err
		}
		h := DecodeHeader(hdr[0], hdr[1])
		if h.Kind == KindEmpty {
			return nil
		}
		total := cellTotalLen(h)
		var payload []byte
		if h.PayloadLen > 0 {
			payload = make([]byte, h.PayloadLen)
			if err := p.medium.ReadAt(absHdr+2, payload); err != nil {
				return err
			}
		}
		if err := visit(Ref(absHdr), h, payload); err != nil {
			return err
		}
		off += uint32(total)
	}
}

// FreeBytes reports the remaining room in the active bank.
func (p *Pool) FreeBytes() uint32 {
	return p.size - p.tail
}

// BankSize reports the per-bank capacity (usable for compaction planning).
func (p *Pool) BankSize() uint32 {
	return p.size
}

// Staging is a write cursor into the currently-inactive (and freshly
// erased) bank, used by the card's compact step (C6) to rewrite live state
// in canonical order before the pool commits to it.
type Staging struct {
	pool *Pool
	bank int
	tail uint32
}

// BeginCompaction erases the inactive bank and returns a Staging cursor
// positioned at its start.
func (p *Pool) BeginCompaction() (*Staging, error) {
	other := 1 - p.active
	if err := p.medium.Erase(p.bank[other], p.size); err != nil {
		return nil, err
	}
	return &Staging{pool: p, bank: other}, nil
}

// Append writes a DO cell into the staging bank.
func (s *Staging) Append(nr byte, payload []byte) (Ref, error) {
	cell, err := EncodeDOCell(nr, payload)
	if err != nil {
		return 0, err
	}
	return s.appendRaw(cell)
}

// AppendRawCell writes a pre-encoded cell into the staging bank.
func (s *Staging) AppendRawCell(cell []byte) (Ref, error) {
	return s.appendRaw(cell)
}

func (s *Staging) appendRaw(cell []byte) (Ref, error) {
	if s.tail+uint32(len(cell)) > s.pool.size {
		return 0, ErrOOM
	}
	off := s.pool.bank[s.bank] + s.tail
	if err := s.pool.medium.Program(off, cell); err != nil {
		return 0, err
	}
	s.tail += uint32(len(cell))
	return Ref(off), nil
}

// Commit erases the superblock, writes the marker for the staged bank,
// erases the now-obsolete old bank, and switches the pool over to the
// staged bank as active.
func (s *Staging) Commit() error {
	marker := bank0Marker
	if s.bank == 1 {
		marker = bank1Marker
	}
	if err := s.pool.medium.Erase(0, superblockLen); err != nil {
		return err
	}
	if err := s.pool.medium.Program(0, marker[:]); err != nil {
		return err
	}
	oldBank := s.pool.active
	if err := s.pool.medium.Erase(s.pool.bank[oldBank], s.pool.size); err != nil {
		return err
	}
	s.pool.active = s.bank
	s.pool.tail = s.tail
	return nil
}
