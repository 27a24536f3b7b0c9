package runner_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcinKonowalczyk/bfvm/bf"
	"github.com/MarcinKonowalczyk/bfvm/runner"
	"github.com/MarcinKonowalczyk/bfvm/utils"
)

func TestParseArgs_Defaults(t *testing.T) {
	c, err := runner.ParseArgs("brainfuck", []string{"+."})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.Source, "+.")
	utils.AssertEqual(t, c.TapeSize, bf.DefaultTapeSize)
	utils.AssertEqual(t, c.EOF, bf.EOFLeave)
	utils.AssertEqual(t, c.CRLF, false)
}

func TestParseArgs_Flags(t *testing.T) {
	c, err := runner.ParseArgs("brainfuck", []string{"-file", "prog.bf", "-tape-size", "16", "-eof", "zero", "-crlf"})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.File, "prog.bf")
	utils.AssertEqual(t, c.Source, "")
	utils.AssertEqual(t, c.TapeSize, 16)
	utils.AssertEqual(t, c.EOF, bf.EOFZero)
	utils.AssertEqual(t, c.CRLF, true)
}

func TestParseArgs_Errors(t *testing.T) {
	_, err := runner.ParseArgs("brainfuck", nil)
	utils.AssertErrorIs(t, err, runner.ErrNoSource)

	_, err = runner.ParseArgs("brainfuck", []string{"-tape-size", "0", "+"})
	utils.AssertErrorIs(t, err, bf.ErrInvalidTapeSize)

	_, err = runner.ParseArgs("brainfuck", []string{"-tape-size", "9223372036854775807", "+"})
	utils.AssertErrorIs(t, err, bf.ErrInvalidTapeSize)

	_, err = runner.ParseArgs("brainfuck", []string{"-eof", "maybe", "+"})
	utils.AssertError(t, err)
}

func TestFromEnv(t *testing.T) {
	c := runner.DefaultConfig()
	err := c.FromEnv([]string{
		"PATH=/usr/bin",
		"BF_TAPE_SIZE=100",
		"BF_EOF=max",
		"BF_CRLF=true",
		"MALFORMED",
	})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.TapeSize, 100)
	utils.AssertEqual(t, c.EOF, bf.EOFMax)
	utils.AssertEqual(t, c.CRLF, true)
}

func TestParseArgs_EmptyProgram(t *testing.T) {
	c, err := runner.ParseArgs("brainfuck", []string{""})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.Source, "")
	var out bytes.Buffer
	utils.AssertNoError(t, runner.Run(context.Background(), c, nil, &out))
	utils.AssertEqual(t, out.Len(), 0)
}

func TestFromEnv_Invalid(t *testing.T) {
	for _, kv := range []string{"BF_TAPE_SIZE=lots", "BF_EOF=?", "BF_CRLF=perhaps"} {
		c := runner.DefaultConfig()
		utils.AssertError(t, c.FromEnv([]string{kv}))
	}
}

func TestLoadSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.bf")
	utils.AssertNoError(t, os.WriteFile(path, []byte("read two numbers , > ,"), 0o644))
	c := runner.DefaultConfig()
	c.File = path
	source, err := c.LoadSource()
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, source, "read two numbers , > ,")

	c.File = filepath.Join(t.TempDir(), "missing.bf")
	_, err = c.LoadSource()
	utils.AssertErrorIs(t, err, os.ErrNotExist)
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	c := runner.DefaultConfig()
	c.Source = ",[.,]"
	c.EOF = bf.EOFZero
	err := runner.Run(context.Background(), c, strings.NewReader("echo"), &out)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), "echo")
}

func TestRun_SyntaxErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bf")
	utils.AssertNoError(t, os.WriteFile(path, []byte("+[+"), 0o644))
	c := runner.DefaultConfig()
	c.File = path
	err := runner.Run(context.Background(), c, nil, nil)
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopStart)
	utils.Assert(t, strings.Contains(err.Error(), "broken.bf"), "error does not name the file")
}

func TestRun_CRLF(t *testing.T) {
	var out bytes.Buffer
	c := runner.DefaultConfig()
	// "\n!\n"
	c.Source = strings.Repeat("+", 10) + ".>" + strings.Repeat("+", 33) + ".<."
	c.CRLF = true
	utils.AssertNoError(t, runner.Run(context.Background(), c, nil, &out))
	utils.AssertEqual(t, out.String(), "\r\n!\r\n")
}

func TestExecute_ReturnsInterpreter(t *testing.T) {
	c := runner.DefaultConfig()
	c.Source = ",,"
	c.TapeSize = 4
	program, err := runner.Prepare(c)
	utils.AssertNoError(t, err)
	interpreter, err := runner.Execute(context.Background(), program, c, strings.NewReader(""), nil)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, interpreter.Exhaustions(), 2)
	utils.AssertEqual(t, interpreter.MemoryLength(), 4)
}
