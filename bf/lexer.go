package bf

import "strings"

// Op is one of the eight Brainfuck instructions.
type Op uint8

const (
	MoveRight Op = iota
	MoveLeft
	Increment
	Decrement
	LoopStart
	LoopEnd
	ReadByte
	WriteByte
)

const numOps = 8

var opSymbols = [numOps]rune{
	MoveRight: '>',
	MoveLeft:  '<',
	Increment: '+',
	Decrement: '-',
	LoopStart: '[',
	LoopEnd:   ']',
	ReadByte:  ',',
	WriteByte: '.',
}

var opNames = [numOps]string{
	MoveRight: "MoveRight",
	MoveLeft:  "MoveLeft",
	Increment: "Increment",
	Decrement: "Decrement",
	LoopStart: "LoopStart",
	LoopEnd:   "LoopEnd",
	ReadByte:  "ReadByte",
	WriteByte: "WriteByte",
}

// Symbol returns the source character of the instruction.
func (o Op) Symbol() rune {
	if o >= numOps {
		return '?'
	}
	return opSymbols[o]
}

func (o Op) String() string {
	if o >= numOps {
		return "Op(?)"
	}
	return opNames[o]
}

// ParseOp maps a source character to its instruction. Any character outside
// the instruction set is a comment and reports false.
func ParseOp(c rune) (Op, bool) {
	switch c {
	case '>':
		return MoveRight, true
	case '<':
		return MoveLeft, true
	case '+':
		return Increment, true
	case '-':
		return Decrement, true
	case '[':
		return LoopStart, true
	case ']':
		return LoopEnd, true
	case ',':
		return ReadByte, true
	case '.':
		return WriteByte, true
	default:
		return 0, false
	}
}

type Lexer struct {
	chars string
}

func NewLexer(input string) *Lexer {
	return &Lexer{
		chars: input,
	}
}

func (l *Lexer) Lex() []Op {
	ops := make([]Op, 0, len(l.chars))
	for _, c := range l.chars {
		if op, ok := ParseOp(c); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func Lex(input string) []Op {
	return NewLexer(input).Lex()
}

// Strip removes everything but the instruction characters from the source.
func Strip(input string) string {
	var b strings.Builder
	for _, c := range input {
		if _, ok := ParseOp(c); ok {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CountSymbols counts the instruction characters in the source.
func CountSymbols(input string) int {
	n := 0
	for _, c := range input {
		if _, ok := ParseOp(c); ok {
			n++
		}
	}
	return n
}
