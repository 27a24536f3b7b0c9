package bf

import (
	"context"
	"errors"
	"io"
)

// Interpreter runs one Program against its own tape. It is not safe for
// concurrent use; run several programs in parallel with one Interpreter each.
type Interpreter struct {
	Program *Program
	Input   io.ByteReader
	Output  io.ByteWriter

	tape        *Tape
	pc          int
	steps       uint64
	exhaustions uint64
	config      Config
}

// NewInterpreter builds an interpreter with a zeroed tape. A nil input is
// always exhausted and a nil output discards everything written to it.
func NewInterpreter(program *Program, input io.ByteReader, output io.ByteWriter, opts ...Option) (*Interpreter, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	tape, err := NewTape(config.TapeSize)
	if err != nil {
		return nil, err
	}
	if program == nil {
		program = &Program{}
	}
	return &Interpreter{
		Program: program,
		Input:   input,
		Output:  output,
		tape:    tape,
		config:  config,
	}, nil
}

// Reset zeroes the tape and rewinds the program so it can run again.
func (i *Interpreter) Reset() {
	i.tape.Reset()
	i.pc = 0
	i.steps = 0
	i.exhaustions = 0
}

func (i *Interpreter) Tape() *Tape {
	return i.tape
}

func (i *Interpreter) MemoryLength() int {
	return i.tape.Len()
}

// Index the memory
func (i *Interpreter) At(j int) uint8 {
	return i.tape.At(j)
}

func (i *Interpreter) Pointer() int {
	return i.tape.Pointer()
}

func (i *Interpreter) PC() int {
	return i.pc
}

// Steps is the number of instructions executed so far.
func (i *Interpreter) Steps() uint64 {
	return i.steps
}

// Exhaustions is the number of reads that found the input exhausted.
func (i *Interpreter) Exhaustions() uint64 {
	return i.exhaustions
}

func (i *Interpreter) Config() Config {
	return i.config
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}

// RunContext runs the program until the program counter falls off the end,
// an I/O error occurs or ctx is done. Cancellation is only observed between
// instructions; a blocked read or write holds the run until it returns.
func (i *Interpreter) RunContext(ctx context.Context) error {
	done := ctx.Done()
	n := i.Program.Len()
	for i.pc < n {
		if done != nil {
			select {
			case <-done:
				return i.fail(ctx.Err(), nil)
			default:
			}
		}
		if err := i.step(); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) step() error {
	in := i.Program.At(i.pc)
	i.steps++
	switch in.Op {
	case MoveRight:
		i.tape.Right()
	case MoveLeft:
		i.tape.Left()
	case Increment:
		i.tape.Increment()
	case Decrement:
		i.tape.Decrement()
	case LoopStart:
		if i.tape.Get() == 0 {
			i.pc = in.Jump + 1
			return nil
		}
	case LoopEnd:
		if i.tape.Get() != 0 {
			i.pc = in.Jump + 1
			return nil
		}
	case ReadByte:
		if err := i.read(); err != nil {
			return err
		}
	case WriteByte:
		if i.Output != nil {
			if err := i.Output.WriteByte(i.tape.Get()); err != nil {
				return i.fail(ErrIO, err)
			}
		}
	default:
		panic("unknown instruction " + in.Op.String())
	}
	i.pc++
	return nil
}

func (i *Interpreter) read() error {
	if i.Input != nil {
		b, err := i.Input.ReadByte()
		if err == nil {
			i.tape.Set(b)
			return nil
		}
		if !errors.Is(err, io.EOF) {
			return i.fail(ErrIO, err)
		}
	}

	i.exhaustions++
	if i.config.OnInputExhausted != nil {
		i.config.OnInputExhausted(i.pc)
	}
	switch i.config.EOF {
	case EOFZero:
		i.tape.Set(0)
	case EOFMax:
		i.tape.Set(255)
	case EOFError:
		return i.fail(ErrInputExhausted, nil)
	}
	return nil
}

func (i *Interpreter) fail(err, cause error) error {
	return &RunError{
		Err:   err,
		Cause: cause,
		PC:    i.pc,
		Op:    i.Program.At(i.pc).Op,
	}
}
