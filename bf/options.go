package bf

import (
	"fmt"
	"strings"
)

// EOFPolicy selects what ReadByte does once the input is exhausted.
type EOFPolicy uint8

const (
	// EOFLeave leaves the current cell unchanged.
	EOFLeave EOFPolicy = iota
	// EOFZero stores 0 in the current cell.
	EOFZero
	// EOFMax stores 255 in the current cell, the 8 bit rendition of -1.
	EOFMax
	// EOFError stops the run with ErrInputExhausted.
	EOFError
)

var eofPolicyNames = map[EOFPolicy]string{
	EOFLeave: "leave",
	EOFZero:  "zero",
	EOFMax:   "max",
	EOFError: "error",
}

func (p EOFPolicy) String() string {
	if s, ok := eofPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("EOFPolicy(%d)", uint8(p))
}

func ParseEOFPolicy(s string) (EOFPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "leave", "unchanged":
		return EOFLeave, nil
	case "zero", "0":
		return EOFZero, nil
	case "max", "255", "-1":
		return EOFMax, nil
	case "error", "fail":
		return EOFError, nil
	}
	return 0, fmt.Errorf("unknown eof policy %q (want leave, zero, max or error)", s)
}

// Config holds the settings of one interpreter. It is fixed once the
// interpreter is built.
type Config struct {
	TapeSize int
	EOF      EOFPolicy
	// OnInputExhausted, if set, is called with the program counter every
	// time a ReadByte finds the input exhausted.
	OnInputExhausted func(pc int)
}

func DefaultConfig() Config {
	return Config{
		TapeSize: DefaultTapeSize,
		EOF:      EOFLeave,
	}
}

type Option func(*Config)

func WithTapeSize(n int) Option {
	return func(c *Config) {
		c.TapeSize = n
	}
}

func WithEOFPolicy(p EOFPolicy) Option {
	return func(c *Config) {
		c.EOF = p
	}
}

func WithInputExhausted(fn func(pc int)) Option {
	return func(c *Config) {
		c.OnInputExhausted = fn
	}
}

func (c Config) validate() error {
	if err := CheckTapeSize(c.TapeSize); err != nil {
		return err
	}
	if _, ok := eofPolicyNames[c.EOF]; !ok {
		return fmt.Errorf("unknown eof policy %d", c.EOF)
	}
	return nil
}
