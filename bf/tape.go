package bf

import "fmt"

const (
	DefaultTapeSize = 30_000
	// MaxTapeSize is the largest tape NewTape allocates (64 MiB of cells).
	MaxTapeSize = 1 << 26
)

// CheckTapeSize reports ErrInvalidTapeSize unless 0 < size <= MaxTapeSize.
func CheckTapeSize(size int) error {
	if size <= 0 || size > MaxTapeSize {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidTapeSize, size, MaxTapeSize)
	}
	return nil
}

// Tape is a circular array of 8 bit cells with a cell pointer. Moving off
// either end wraps around to the other.
type Tape struct {
	cells []uint8
	ptr   int
}

func NewTape(size int) (*Tape, error) {
	if err := CheckTapeSize(size); err != nil {
		return nil, err
	}
	return &Tape{cells: make([]uint8, size)}, nil
}

func (t *Tape) Len() int {
	return len(t.cells)
}

func (t *Tape) Pointer() int {
	return t.ptr
}

func (t *Tape) Right() {
	t.ptr = (t.ptr + 1) % len(t.cells)
}

func (t *Tape) Left() {
	t.ptr = (t.ptr + len(t.cells) - 1) % len(t.cells)
}

func (t *Tape) Increment() {
	t.cells[t.ptr]++
}

func (t *Tape) Decrement() {
	t.cells[t.ptr]--
}

func (t *Tape) Get() uint8 {
	return t.cells[t.ptr]
}

func (t *Tape) Set(v uint8) {
	t.cells[t.ptr] = v
}

// At reads cell j modulo the tape length, so negative indices count back
// from the end of the tape.
func (t *Tape) At(j int) uint8 {
	return t.cells[wrapIndex(j, len(t.cells))]
}

func (t *Tape) Reset() {
	t.ptr = 0
	clear(t.cells)
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
