package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bfvm/bf"
)

// Prepare loads and compiles the program described by c.
func Prepare(c Config) (*bf.Program, error) {
	source, err := c.LoadSource()
	if err != nil {
		return nil, err
	}
	program, err := bf.Compile(source)
	if err != nil {
		if c.File != "" {
			return nil, fmt.Errorf("compiling %s: %w", c.File, err)
		}
		return nil, fmt.Errorf("compiling program: %w", err)
	}
	return program, nil
}

// Execute runs program on a new interpreter configured from c. The
// interpreter is returned even when the run fails so callers can inspect it.
func Execute(ctx context.Context, program *bf.Program, c Config, input io.Reader, output io.Writer, opts ...bf.Option) (*bf.Interpreter, error) {
	sink := bf.NewByteSink(output)
	if c.CRLF && sink != nil {
		sink = NewCRLFWriter(sink)
	}
	opts = append(c.Options(), opts...)
	interpreter, err := bf.NewInterpreter(program, bf.NewByteSource(input), sink, opts...)
	if err != nil {
		return nil, err
	}

	logger := log.G(ctx).WithFields(log.Fields{
		"instructions": program.Len(),
		"tape":         c.TapeSize,
		"eof":          c.EOF.String(),
	})
	logger.Debug("run started")
	err = interpreter.RunContext(ctx)
	logger = logger.WithFields(log.Fields{
		"steps":     interpreter.Steps(),
		"exhausted": interpreter.Exhaustions(),
	})
	if err != nil {
		logger.WithError(err).Debug("run failed")
		return interpreter, err
	}
	logger.Debug("run finished")
	return interpreter, nil
}

// Run compiles and executes the program described by c.
func Run(ctx context.Context, c Config, input io.Reader, output io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	program, err := Prepare(c)
	if err != nil {
		return err
	}
	_, err = Execute(ctx, program, c, input, output)
	return err
}

// Print writes the instructions of the program described by c, one line,
// comments removed. Unbalanced programs are rejected like in Run.
func Print(c Config, output io.Writer) error {
	source, err := c.LoadSource()
	if err != nil {
		return err
	}
	c.Source = source
	if _, err := Prepare(c); err != nil {
		return err
	}
	if output == nil {
		return nil
	}
	_, err = fmt.Fprintln(output, bf.Strip(source))
	return err
}

// NewCRLFWriter expands every '\n' written to w into "\r\n". Terminals
// attached through docker and Windows consoles do not do this themselves.
func NewCRLFWriter(w io.ByteWriter) io.ByteWriter {
	return crlfWriter{w}
}

type crlfWriter struct {
	w io.ByteWriter
}

func (c crlfWriter) WriteByte(b byte) error {
	if b == '\n' {
		if err := c.w.WriteByte('\r'); err != nil {
			return err
		}
	}
	return c.w.WriteByte(b)
}
