package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarcinKonowalczyk/bfvm/runner"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runner.Main(ctx, "brainfuck", os.Args[1:], os.Stdin, os.Stdout)
	cancel()
	os.Exit(code)
}
