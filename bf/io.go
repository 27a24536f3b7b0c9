package bf

import "io"

// NewByteSource pulls bytes from r one at a time without reading ahead, so
// whatever the program does not consume stays in r. Readers that already
// implement io.ByteReader are returned as they are.
func NewByteSource(r io.Reader) io.ByteReader {
	if r == nil {
		return nil
	}
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &byteSource{r: r}
}

type byteSource struct {
	r   io.Reader
	buf [1]byte
}

// maxEmptyReads mirrors the limit bufio uses before giving up on a reader
// that keeps returning 0, nil.
const maxEmptyReads = 100

func (s *byteSource) ReadByte() (byte, error) {
	for range maxEmptyReads {
		n, err := s.r.Read(s.buf[:])
		if n == 1 {
			return s.buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, io.ErrNoProgress
}

// NewByteSink pushes every byte straight to w.
func NewByteSink(w io.Writer) io.ByteWriter {
	if w == nil {
		return nil
	}
	if bw, ok := w.(io.ByteWriter); ok {
		return bw
	}
	return &byteSink{w: w}
}

type byteSink struct {
	w   io.Writer
	buf [1]byte
}

func (s *byteSink) WriteByte(c byte) error {
	s.buf[0] = c
	n, err := s.w.Write(s.buf[:])
	if err != nil {
		return err
	}
	if n != 1 {
		return io.ErrShortWrite
	}
	return nil
}
