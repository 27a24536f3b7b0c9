package bf

import (
	"context"
	"io"
)

// Run compiles source and executes it on a fresh interpreter. Programs with
// unbalanced brackets are rejected before anything runs.
func Run(source string, input io.Reader, output io.Writer, opts ...Option) error {
	return RunContext(context.Background(), source, input, output, opts...)
}

func RunContext(ctx context.Context, source string, input io.Reader, output io.Writer, opts ...Option) error {
	program, err := Compile(source)
	if err != nil {
		return err
	}
	interpreter, err := NewInterpreter(program, NewByteSource(input), NewByteSink(output), opts...)
	if err != nil {
		return err
	}
	return interpreter.RunContext(ctx)
}
