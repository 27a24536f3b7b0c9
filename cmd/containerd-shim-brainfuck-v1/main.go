package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/MarcinKonowalczyk/bfvm/runner"
	bf_shim "github.com/MarcinKonowalczyk/bfvm/shim"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// `containerd-shim-brainfuck-v1 brainfuck [flags] [source]` runs the
	// interpreter directly, without going through containerd
	if len(os.Args) > 1 && os.Args[1] == "brainfuck" {
		code := runner.Main(ctx, "brainfuck", os.Args[2:], os.Stdin, os.Stdout)
		cancel()
		os.Exit(code)
	}

	shim.Run(ctx, bf_shim.NewManager("io.containerd.bf.v1"))
}
