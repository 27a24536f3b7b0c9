package shim

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"syscall"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	"github.com/containerd/fifo"
)

// stdio holds the streams of one task. Any of them may be nil when
// containerd did not ask for it.
type stdio struct {
	in  io.ReadCloser
	out io.WriteCloser
	err io.WriteCloser

	closeIn  sync.Once
	inClosed atomic.Bool
	closeAll sync.Once
	closeErr error
}

type stdioOpener func(ctx context.Context, r *taskAPI.CreateTaskRequest) (*stdio, error)

func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	if path == "" {
		return nil, nil
	}
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo", path)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

// openFifos opens the fifos containerd created for the task. ctx must
// outlive the task: cancelling it before a fifo is connected closes it.
func openFifos(ctx context.Context, r *taskAPI.CreateTaskRequest) (_ *stdio, retErr error) {
	s := &stdio{}
	defer func() {
		if retErr != nil {
			s.Close()
		}
	}()

	stderr := r.Stderr
	if stderr == "" {
		stderr = r.Stdout
	}

	if f, err := openFifo(ctx, r.Stdout, syscall.O_WRONLY); err != nil {
		return nil, err
	} else if f != nil {
		s.out = f
	}
	if stderr == r.Stdout {
		s.err = nopCloser{s.out}
	} else if f, err := openFifo(ctx, stderr, syscall.O_WRONLY); err != nil {
		return nil, err
	} else if f != nil {
		s.err = f
	}
	// the writing side of stdin may never be opened
	if f, err := openFifo(ctx, r.Stdin, syscall.O_RDONLY|syscall.O_NONBLOCK); err != nil {
		return nil, err
	} else if f != nil {
		s.in = f
	}
	return s, nil
}

// CloseStdin closes the input so that a pending read returns. From then on
// the program sees the end of its input.
func (s *stdio) CloseStdin() error {
	var err error
	s.closeIn.Do(func() {
		s.inClosed.Store(true)
		if s.in != nil {
			err = s.in.Close()
		}
	})
	return err
}

// Close closes every stream once. A write blocked on a stream returns with
// an error.
func (s *stdio) Close() error {
	s.closeAll.Do(func() {
		var errs []error
		if err := s.CloseStdin(); err != nil {
			errs = append(errs, err)
		}
		for _, c := range []io.Closer{s.out, s.err} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			s.closeErr = errs[0]
		}
	})
	return s.closeErr
}

func (s *stdio) stdin() io.Reader {
	return stdinReader{s}
}

type stdinReader struct {
	s *stdio
}

func (r stdinReader) Read(p []byte) (int, error) {
	if r.s.inClosed.Load() {
		return 0, io.EOF
	}
	n, err := r.s.in.Read(p)
	if err != nil && r.s.inClosed.Load() {
		err = io.EOF
	}
	return n, err
}

type nopCloser struct {
	io.Writer
}

func (n nopCloser) Write(p []byte) (int, error) {
	if n.Writer == nil {
		return len(p), nil
	}
	return n.Writer.Write(p)
}

func (nopCloser) Close() error { return nil }

// countingReader and countingWriter let Stats observe a running task
// without touching its interpreter.
type countingReader struct {
	r io.Reader
	n atomic.Uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(uint64(n))
	return n, err
}

type countingWriter struct {
	w io.Writer
	n atomic.Uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(uint64(n))
	return n, err
}
