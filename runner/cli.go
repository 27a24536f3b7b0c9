package runner

import (
	"context"
	"errors"
	"flag"
	"io"

	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bfvm/bf"
)

// Exit codes of Main.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Main is the body of the brainfuck command. It parses args, runs the
// program between stdin and stdout and maps the outcome to an exit code.
func Main(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) int {
	c, err := ParseArgs(name, args)
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		log.G(ctx).WithError(err).Error("invalid arguments")
		return ExitUsage
	}
	if c.Debug {
		if err := log.SetLevel("debug"); err != nil {
			log.G(ctx).WithError(err).Warn("failed to set log level")
		}
	}

	if c.Print {
		err = Print(c, stdout)
	} else {
		err = Run(ctx, c, stdin, stdout)
	}
	var serr *bf.SyntaxError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &serr):
		log.G(ctx).WithError(err).Error("invalid program")
		return ExitUsage
	case errors.Is(err, context.Canceled):
		log.G(ctx).Info("interrupted")
		return ExitFailure
	default:
		log.G(ctx).WithError(err).Error("run failed")
		return ExitFailure
	}
}
