package bf

import "strings"

// Instruction is a resolved Op. Jump holds the index of the matching bracket
// for LoopStart and LoopEnd and is -1 for everything else.
type Instruction struct {
	Op   Op
	Jump int
}

// Program is a bracket-checked instruction stream with its jump table
// precomputed. It is never modified after Resolve returns and may be shared
// between interpreters.
type Program struct {
	instructions []Instruction
}

func (p *Program) Len() int {
	return len(p.instructions)
}

func (p *Program) At(i int) Instruction {
	return p.instructions[i]
}

// Match returns the index of the bracket paired with the one at i.
func (p *Program) Match(i int) (int, bool) {
	if i < 0 || i >= len(p.instructions) {
		return 0, false
	}
	in := p.instructions[i]
	if in.Op != LoopStart && in.Op != LoopEnd {
		return 0, false
	}
	return in.Jump, true
}

// Ops returns a copy of the instruction kinds.
func (p *Program) Ops() []Op {
	ops := make([]Op, len(p.instructions))
	for i, in := range p.instructions {
		ops[i] = in.Op
	}
	return ops
}

func (p *Program) String() string {
	var b strings.Builder
	b.Grow(len(p.instructions))
	for _, in := range p.instructions {
		b.WriteRune(in.Op.Symbol())
	}
	return b.String()
}

// Resolve pairs up the brackets of ops in a single pass.
func Resolve(ops []Op) (*Program, error) {
	instructions := make([]Instruction, len(ops))
	var stack []int
	for i, op := range ops {
		if op >= numOps {
			return nil, &SyntaxError{Err: ErrInvalidOp, Index: i}
		}
		instructions[i] = Instruction{Op: op, Jump: -1}
		switch op {
		case LoopStart:
			stack = append(stack, i)
		case LoopEnd:
			if len(stack) == 0 {
				return nil, &SyntaxError{Err: ErrUnmatchedLoopEnd, Index: i}
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			instructions[start].Jump = i
			instructions[i].Jump = start
		}
	}
	if len(stack) > 0 {
		// report the outermost open loop
		return nil, &SyntaxError{Err: ErrUnmatchedLoopStart, Index: stack[0]}
	}
	return &Program{instructions: instructions}, nil
}

// Compile lexes and resolves source.
func Compile(source string) (*Program, error) {
	return Resolve(Lex(source))
}

// MustCompile is like Compile but panics on unbalanced brackets. Intended
// for programs known at compile time.
func MustCompile(source string) *Program {
	p, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return p
}
