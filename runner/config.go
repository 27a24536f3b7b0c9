package runner

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MarcinKonowalczyk/bfvm/bf"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/bfvm/runner.debug=true'"`
var debug string

// Environment variables understood by FromEnv.
const (
	EnvTapeSize = "BF_TAPE_SIZE"
	EnvEOF      = "BF_EOF"
	EnvCRLF     = "BF_CRLF"
)

var ErrNoSource = errors.New("no program: pass -file or the source as an argument")

// Config describes one interpreter run.
type Config struct {
	// File is read when Source is empty.
	File     string
	Source   string
	TapeSize int
	EOF      bf.EOFPolicy
	// CRLF writes "\r\n" for every '\n' the program outputs.
	CRLF bool
	// Print writes the program without comments instead of running it.
	Print bool
	Debug bool

	// inline is set when the program text came from the command line, even
	// an empty one
	inline bool
}

func DefaultConfig() Config {
	return Config{
		TapeSize: bf.DefaultTapeSize,
		EOF:      bf.EOFLeave,
		Debug:    debug != "",
	}
}

type eofFlag struct {
	p *bf.EOFPolicy
}

func (f eofFlag) String() string {
	if f.p == nil {
		return bf.EOFLeave.String()
	}
	return f.p.String()
}

func (f eofFlag) Set(s string) error {
	p, err := bf.ParseEOFPolicy(s)
	if err != nil {
		return err
	}
	*f.p = p
	return nil
}

// BindFlags registers the interpreter flags on fs.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "file", c.File, "brainfuck source file")
	fs.IntVar(&c.TapeSize, "tape-size", c.TapeSize, "number of cells on the tape")
	fs.Var(eofFlag{&c.EOF}, "eof", "what ',' does at end of input: leave, zero, max or error")
	fs.BoolVar(&c.CRLF, "crlf", c.CRLF, "translate '\\n' to '\\r\\n' on output")
	fs.BoolVar(&c.Print, "print", c.Print, "print the program without comments and exit")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
}

// ParseArgs parses the interpreter command line. Without -file the first
// positional argument is taken as the program text.
func ParseArgs(name string, args []string) (Config, error) {
	c := DefaultConfig()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if c.File == "" && fs.NArg() > 0 {
		c.Source = strings.Join(fs.Args(), " ")
		c.inline = true
	}
	return c, c.Validate()
}

// FromEnv overlays the BF_* variables of env (in "KEY=value" form) on c.
func (c *Config) FromEnv(env []string) error {
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case EnvTapeSize:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", EnvTapeSize, err)
			}
			c.TapeSize = n
		case EnvEOF:
			p, err := bf.ParseEOFPolicy(value)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", EnvEOF, err)
			}
			c.EOF = p
		case EnvCRLF:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", EnvCRLF, err)
			}
			c.CRLF = b
		}
	}
	return nil
}

func (c Config) Validate() error {
	if err := bf.CheckTapeSize(c.TapeSize); err != nil {
		return err
	}
	if c.File == "" && c.Source == "" && !c.inline {
		return ErrNoSource
	}
	return nil
}

// LoadSource returns the program text, reading File if no Source is set.
func (c Config) LoadSource() (string, error) {
	if c.Source != "" || c.File == "" {
		return c.Source, nil
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return "", fmt.Errorf("reading program: %w", err)
	}
	return string(data), nil
}

// Options translates the config into interpreter options.
func (c Config) Options() []bf.Option {
	return []bf.Option{
		bf.WithTapeSize(c.TapeSize),
		bf.WithEOFPolicy(c.EOF),
	}
}
