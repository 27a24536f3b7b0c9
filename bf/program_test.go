package bf_test

import (
	"testing"

	"github.com/MarcinKonowalczyk/bfvm/bf"
	"github.com/MarcinKonowalczyk/bfvm/utils"
)

// matches checks that every bracket points at a bracket that points back.
func matches(t *testing.T, p *bf.Program) {
	t.Helper()
	for i := 0; i < p.Len(); i++ {
		j, ok := p.Match(i)
		op := p.At(i).Op
		if op != bf.LoopStart && op != bf.LoopEnd {
			utils.Assert(t, !ok, "non-bracket has a match")
			utils.AssertEqual(t, p.At(i).Jump, -1)
			continue
		}
		utils.Assert(t, ok, "bracket has no match")
		k, ok := p.Match(j)
		utils.Assert(t, ok, "match of a bracket is not a bracket")
		utils.AssertEqual(t, k, i)
		if op == bf.LoopStart {
			utils.Assert(t, j > i, "loop end before loop start")
			utils.AssertEqual(t, p.At(j).Op, bf.LoopEnd)
		} else {
			utils.Assert(t, j < i, "loop start after loop end")
			utils.AssertEqual(t, p.At(j).Op, bf.LoopStart)
		}
	}
}

func TestResolve_Simple(t *testing.T) {
	p, err := bf.Compile("+[-]")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, p.Len(), 4)
	utils.AssertEqual(t, p.At(1).Jump, 3)
	utils.AssertEqual(t, p.At(3).Jump, 1)
	matches(t, p)
}

func TestResolve_Nested(t *testing.T) {
	p, err := bf.Compile("[[][[]]]")
	utils.AssertNoError(t, err)
	expected := []int{7, 2, 1, 6, 5, 4, 3, 0}
	for i, j := range expected {
		utils.AssertEqual(t, p.At(i).Jump, j)
	}
	matches(t, p)
}

func TestResolve_AdjacentAndEmpty(t *testing.T) {
	p, err := bf.Compile("[][+][]")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, p.At(0).Jump, 1)
	utils.AssertEqual(t, p.At(2).Jump, 4)
	utils.AssertEqual(t, p.At(5).Jump, 6)
	matches(t, p)
}

func TestResolve_Programs(t *testing.T) {
	for _, source := range []string{
		"",
		"+++",
		"++++[>++++<-]>.",
		"++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.",
		"[[[[[[[[[[]]]]]]]]]]",
	} {
		p, err := bf.Compile(source)
		utils.AssertNoError(t, err)
		matches(t, p)
		utils.AssertEqual(t, p.String(), bf.Strip(source))
	}
}

func TestResolve_UnmatchedLoopEnd(t *testing.T) {
	_, err := bf.Compile("+]")
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopEnd)
	serr := utils.AssertErrorAs[*bf.SyntaxError](t, err)
	utils.AssertEqual(t, serr.Index, 1)

	_, err = bf.Compile("[]][")
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopEnd)
	serr = utils.AssertErrorAs[*bf.SyntaxError](t, err)
	utils.AssertEqual(t, serr.Index, 2)
}

func TestResolve_UnmatchedLoopStart(t *testing.T) {
	_, err := bf.Compile("+[[]")
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopStart)
	serr := utils.AssertErrorAs[*bf.SyntaxError](t, err)
	utils.AssertEqual(t, serr.Index, 1)

	// the earliest open bracket is reported
	_, err = bf.Compile("[[[]")
	serr = utils.AssertErrorAs[*bf.SyntaxError](t, err)
	utils.AssertEqual(t, serr.Index, 0)
}

func TestResolve_InvalidOp(t *testing.T) {
	_, err := bf.Resolve([]bf.Op{bf.Increment, bf.Op(200)})
	utils.AssertErrorIs(t, err, bf.ErrInvalidOp)
}

func TestProgram_MatchOutOfRange(t *testing.T) {
	p := bf.MustCompile("[]")
	_, ok := p.Match(-1)
	utils.Assert(t, !ok, "negative index matched")
	_, ok = p.Match(2)
	utils.Assert(t, !ok, "index past the end matched")
}

func TestMustCompile_Panics(t *testing.T) {
	defer func() {
		utils.Assert(t, recover() != nil, "expected a panic")
	}()
	bf.MustCompile("[")
}

func TestSyntaxError_Message(t *testing.T) {
	_, err := bf.Compile("]")
	utils.AssertEqual(t, err.Error(), "unmatched ']' at instruction 0")
}
