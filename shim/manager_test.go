package shim

import (
	"context"
	"testing"

	"github.com/MarcinKonowalczyk/bfvm/utils"
)

func TestManager_Info(t *testing.T) {
	m := NewManager("io.containerd.bf.v1")
	utils.AssertEqual(t, m.Name(), "io.containerd.bf.v1")

	info, err := m.Info(context.Background(), nil)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, info.Name, "io.containerd.bf.v1")
	utils.AssertEqual(t, info.Version.Version, version)
}

func TestManager_StopWithoutPidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	status, err := NewManager("io.containerd.bf.v1").Stop(context.Background(), "missing")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, status.Pid, -1)
	utils.AssertEqual(t, status.ExitStatus, exitStatusKilled)
}
