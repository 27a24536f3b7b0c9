package shim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/containerd/protobuf"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/containerd/v2/pkg/shutdown"
	"github.com/containerd/containerd/v2/plugins"
	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MarcinKonowalczyk/bfvm/bf"
	"github.com/MarcinKonowalczyk/bfvm/runner"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: plugins.TTRPCPlugin,
		ID:   "task",
		Requires: []plugin.Type{
			plugins.InternalPlugin,
		},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			ss, err := ic.GetByID(plugins.InternalPlugin, "shutdown")
			if err != nil {
				return nil, err
			}
			return newTaskService(ic.Context, ss.(shutdown.Service), openFifos), nil
		},
	})
}

// shutdowner is the part of shutdown.Service the task service uses.
type shutdowner interface {
	Shutdown()
}

// bfTaskService runs every task of the shim as a goroutine of the shim
// process. Tasks never share an interpreter or a tape.
type bfTaskService struct {
	mu        sync.RWMutex
	tasks     map[string]*task
	shutdown  shutdowner
	openStdio stdioOpener
	pid       int
}

func newTaskService(ctx context.Context, sd shutdowner, open stdioOpener) *bfTaskService {
	return &bfTaskService{
		tasks:     make(map[string]*task, 1),
		shutdown:  sd,
		openStdio: open,
		pid:       os.Getpid(),
	}
}

// RegisterTTRPC allows TTRPC services to be registered with the underlying server
func (s *bfTaskService) RegisterTTRPC(server *ttrpc.Server) error {
	taskAPI.RegisterTaskService(server, s)
	return nil
}

var (
	_ = shim.TTRPCService(&bfTaskService{})
	_ = taskAPI.TaskService(&bfTaskService{})
)

func (s *bfTaskService) get(id string) (*task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not created: %w", id, errdefs.ErrNotFound)
	}
	return t, nil
}

func (s *bfTaskService) grabDone(id string) (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return t.done, nil
}

// Create compiles the program of the bundle and opens its stdio. Nothing
// runs until Start.
func (s *bfTaskService) Create(ctx context.Context, r *taskAPI.CreateTaskRequest) (_ *taskAPI.CreateTaskResponse, retErr error) {
	log.G(ctx).WithField("id", r.ID).Debug("create (service)")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[r.ID]; ok {
		return nil, fmt.Errorf("task %s: %w", r.ID, errdefs.ErrAlreadyExists)
	}
	if r.Terminal {
		return nil, errdefs.ErrNotImplemented.WithMessage("terminal (task)")
	}

	bundle, err := ReadBundle(r.Bundle)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	config, err := bundle.Config()
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	program, err := runner.Prepare(config)
	if err != nil {
		var serr *bf.SyntaxError
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("%w: %w", err, errdefs.ErrInvalidArgument)
		}
		return nil, err
	}

	// the fifos must stay connected after this request returns
	streams, err := s.openStdio(context.WithoutCancel(ctx), r)
	if err != nil {
		return nil, err
	}

	t := newTask(r.ID, bundle, program, config, streams)
	t.stdinPath, t.stdoutPath, t.stderrPath = r.Stdin, r.Stdout, r.Stderr

	if err := writePidFile(r.Bundle, s.pid); err != nil {
		streams.Close()
		return nil, err
	}

	s.tasks[r.ID] = t
	log.G(ctx).WithFields(log.Fields{
		"id":           r.ID,
		"program":      bundle.Entrypoint,
		"instructions": program.Len(),
	}).Info("task created")

	return &taskAPI.CreateTaskResponse{
		Pid: uint32(s.pid),
	}, nil
}

// Start the program of a created task
func (s *bfTaskService) Start(ctx context.Context, r *taskAPI.StartRequest) (*taskAPI.StartResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("start (service)")

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}
	if t.status != tasktypes.Status_CREATED {
		return nil, errdefs.ErrFailedPrecondition.WithMessage(fmt.Sprintf("task %s is %s", r.ID, t.status))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.status = tasktypes.Status_RUNNING

	ready := make(chan struct{})
	go s.run(runCtx, t, ready)
	<-ready

	return &taskAPI.StartResponse{
		Pid: uint32(s.pid),
	}, nil
}

func (s *bfTaskService) run(ctx context.Context, t *task, ready chan<- struct{}) {
	close(ready)

	exitStatus, _ := t.execute(ctx)
	if err := t.streams.Close(); err != nil {
		log.G(ctx).WithError(err).Warnf("closing stdio of task %s", t.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.killed {
		exitStatus = exitStatusKilled
	}
	s.finish(ctx, t, exitStatus)
}

// finish records the exit of t. Callers hold s.mu.
func (s *bfTaskService) finish(ctx context.Context, t *task, exitStatus int) {
	if t.cancel != nil {
		t.cancel()
	}
	t.exitStatus = exitStatus
	t.exitTime = time.Now()
	t.status = tasktypes.Status_STOPPED
	t.markDone()
	log.G(ctx).Infof("task exited: %s", t)
}

// Delete a stopped or never started task
func (s *bfTaskService) Delete(ctx context.Context, r *taskAPI.DeleteRequest) (*taskAPI.DeleteResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("delete (service)")

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case t.exited():
	case t.status == tasktypes.Status_CREATED:
		t.streams.Close()
		s.finish(ctx, t, exitStatusKilled)
	default:
		return nil, errdefs.ErrFailedPrecondition.WithMessage(fmt.Sprintf("task %s is not done yet", r.ID))
	}
	delete(s.tasks, r.ID)

	if len(s.tasks) == 0 {
		log.G(ctx).Debug("all tasks deleted. shutting down the shim")
		s.shutdown.Shutdown()
	}

	return &taskAPI.DeleteResponse{
		Pid:        uint32(s.pid),
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}

// Exec an additional process inside the container
func (s *bfTaskService) Exec(ctx context.Context, r *taskAPI.ExecProcessRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("exec (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Exec (task)")
}

// ResizePty of a process
func (s *bfTaskService) ResizePty(ctx context.Context, r *taskAPI.ResizePtyRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("resizepty (service)")
	return &emptypb.Empty{}, nil
}

// State returns runtime state of a task
func (s *bfTaskService) State(ctx context.Context, r *taskAPI.StateRequest) (*taskAPI.StateResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("state (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}

	return &taskAPI.StateResponse{
		ID:         r.ID,
		Bundle:     t.bundle.Path,
		Pid:        uint32(s.pid),
		Status:     t.status,
		Stdin:      t.stdinPath,
		Stdout:     t.stdoutPath,
		Stderr:     t.stderrPath,
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}

// Pause the container
func (s *bfTaskService) Pause(ctx context.Context, r *taskAPI.PauseRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("pause (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Pause (task)")
}

// Resume the container
func (s *bfTaskService) Resume(ctx context.Context, r *taskAPI.ResumeRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("resume (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Resume (task)")
}

// Kill stops a task whatever the requested signal. The interpreter notices
// the cancellation between instructions; closing the streams releases a
// pending read or write.
func (s *bfTaskService) Kill(ctx context.Context, r *taskAPI.KillRequest) (*emptypb.Empty, error) {
	log.G(ctx).WithFields(log.Fields{"id": r.ID, "signal": r.Signal}).Debug("kill (service)")

	done, err := func() (context.Context, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, err := s.get(r.ID)
		if err != nil {
			return nil, err
		}
		if t.exited() {
			return nil, nil
		}
		t.killed = true
		if t.status == tasktypes.Status_CREATED {
			t.streams.Close()
			s.finish(ctx, t, exitStatusKilled)
			return t.done, nil
		}
		t.cancel()
		if err := t.streams.Close(); err != nil {
			log.G(ctx).WithError(err).Warnf("closing stdio of task %s", r.ID)
		}
		return t.done, nil
	}()
	if err != nil {
		return nil, err
	}

	if done == nil {
		log.G(ctx).Warnf("task already exited: %s", r.ID)
		return &emptypb.Empty{}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}
	return &emptypb.Empty{}, nil
}

// Pids returns the shim process, which hosts the interpreter
func (s *bfTaskService) Pids(ctx context.Context, r *taskAPI.PidsRequest) (*taskAPI.PidsResponse, error) {
	log.G(ctx).Debug("pids (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.get(r.ID); err != nil {
		return nil, err
	}
	return &taskAPI.PidsResponse{
		Processes: []*tasktypes.ProcessInfo{{Pid: uint32(s.pid)}},
	}, nil
}

// CloseIO closes the stdin of a task. The program sees the end of its
// input on the next read.
func (s *bfTaskService) CloseIO(ctx context.Context, r *taskAPI.CloseIORequest) (*emptypb.Empty, error) {
	log.G(ctx).WithField("id", r.ID).Debug("closeio (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.get(r.ID)
	if err != nil {
		return nil, err
	}
	if r.Stdin {
		if err := t.streams.CloseStdin(); err != nil {
			return nil, fmt.Errorf("closing stdin of task %s: %w", r.ID, err)
		}
	}
	return &emptypb.Empty{}, nil
}

// Checkpoint the container
func (s *bfTaskService) Checkpoint(ctx context.Context, r *taskAPI.CheckpointTaskRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("checkpoint (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Checkpoint (task)")
}

// Connect returns shim information of the underlying service
func (s *bfTaskService) Connect(ctx context.Context, r *taskAPI.ConnectRequest) (*taskAPI.ConnectResponse, error) {
	log.G(ctx).Debug("connect (service)")
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(r.ID); err != nil {
		return nil, err
	}

	return &taskAPI.ConnectResponse{
		ShimPid: uint32(s.pid),
		TaskPid: uint32(s.pid),
		Version: version,
	}, nil
}

// Shutdown is called after the underlying resources of the shim are cleaned up and the service can be stopped
func (s *bfTaskService) Shutdown(ctx context.Context, r *taskAPI.ShutdownRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("shutdown (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tasks) > 0 && !r.Now {
		return &emptypb.Empty{}, nil
	}
	s.shutdown.Shutdown()
	return &emptypb.Empty{}, nil
}

// Stats reports the I/O counters of a task
func (s *bfTaskService) Stats(ctx context.Context, r *taskAPI.StatsRequest) (*taskAPI.StatsResponse, error) {
	s.mu.RLock()
	t, err := s.get(r.ID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	st, err := structpb.NewStruct(t.stats())
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	a, err := anypb.New(st)
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	return &taskAPI.StatsResponse{
		Stats: a,
	}, nil
}

// Update the live container
func (s *bfTaskService) Update(ctx context.Context, r *taskAPI.UpdateTaskRequest) (*emptypb.Empty, error) {
	log.G(ctx).Debug("update (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Update (task)")
}

// Wait for a task to exit
func (s *bfTaskService) Wait(ctx context.Context, r *taskAPI.WaitRequest) (*taskAPI.WaitResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("wait (service)")

	done, err := s.grabDone(r.ID)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.get(r.ID)
	if err != nil {
		return nil, fmt.Errorf("task was removed: %w", err)
	}

	return &taskAPI.WaitResponse{
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}
