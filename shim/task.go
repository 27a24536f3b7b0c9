package shim

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"syscall"
	"time"

	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bfvm/bf"
	"github.com/MarcinKonowalczyk/bfvm/runner"
)

// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_21_18
const exitCodeSignal = 128

const (
	exitStatusOK     = 0
	exitStatusFailed = 1
	exitStatusKilled = exitCodeSignal + int(syscall.SIGKILL)
)

// task is one program run inside the shim process, on its own interpreter.
type task struct {
	id      string
	bundle  *Bundle
	program *bf.Program
	config  runner.Config
	streams *stdio

	stdinPath, stdoutPath, stderrPath string

	bytesIn   *countingReader
	bytesOut  *countingWriter
	exhausted atomic.Uint64

	done     context.Context
	markDone context.CancelFunc

	// guarded by bfTaskService.mu
	status     tasktypes.Status
	cancel     context.CancelFunc
	killed     bool
	exitStatus int
	exitTime   time.Time
}

func newTask(id string, bundle *Bundle, program *bf.Program, config runner.Config, streams *stdio) *task {
	done, markDone := context.WithCancel(context.Background())
	t := &task{
		id:       id,
		bundle:   bundle,
		program:  program,
		config:   config,
		streams:  streams,
		done:     done,
		markDone: markDone,
		status:   tasktypes.Status_CREATED,
	}
	if streams.in != nil {
		t.bytesIn = &countingReader{r: streams.stdin()}
	}
	if streams.out != nil {
		t.bytesOut = &countingWriter{w: streams.out}
	}
	return t
}

func (t *task) String() string {
	if t.done.Err() != nil {
		return fmt.Sprintf("task:%s, exitTime:%s, exitStatus:%d", t.id, t.exitTime.Format(time.RFC3339), t.exitStatus)
	}
	return fmt.Sprintf("task:%s %s", t.id, t.status)
}

func (t *task) exited() bool {
	return t.done.Err() != nil
}

// input and output hide nil counters behind untyped nils so the interpreter
// treats missing streams as exhausted input and discarded output.
func (t *task) input() io.Reader {
	if t.bytesIn == nil {
		return nil
	}
	return t.bytesIn
}

func (t *task) output() io.Writer {
	if t.bytesOut == nil {
		return nil
	}
	return t.bytesOut
}

// execute runs the program to completion and returns the exit status.
func (t *task) execute(ctx context.Context) (int, error) {
	_, err := runner.Execute(ctx, t.program, t.config, t.input(), t.output(),
		bf.WithInputExhausted(func(int) {
			t.exhausted.Add(1)
		}),
	)
	if err != nil {
		if t.streams.err != nil {
			fmt.Fprintf(t.streams.err, "brainfuck: %v\n", err)
		}
		log.G(ctx).WithError(err).Warnf("task %s failed", t.id)
		return exitStatusFailed, err
	}
	return exitStatusOK, nil
}

func (t *task) stats() map[string]any {
	stats := map[string]any{
		"instructions":    t.program.Len(),
		"tape_size":       t.config.TapeSize,
		"input_exhausted": t.exhausted.Load(),
		"bytes_in":        uint64(0),
		"bytes_out":       uint64(0),
	}
	if t.bytesIn != nil {
		stats["bytes_in"] = t.bytesIn.n.Load()
	}
	if t.bytesOut != nil {
		stats["bytes_out"] = t.bytesOut.n.Load()
	}
	return stats
}
