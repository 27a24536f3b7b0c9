package shim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/MarcinKonowalczyk/bfvm/bf"
	"github.com/MarcinKonowalczyk/bfvm/utils"
)

// writeBundle lays out an OCI bundle with a relative rootfs holding one
// program at /prog.bf.
func writeBundle(t *testing.T, source string, args []string, env []string) string {
	t.Helper()
	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	utils.AssertNoError(t, os.MkdirAll(rootfs, 0o755))
	utils.AssertNoError(t, os.WriteFile(filepath.Join(rootfs, "prog.bf"), []byte(source), 0o644))

	spec := specs.Spec{
		Version: specs.Version,
		Root:    &specs.Root{Path: "rootfs"},
		Process: &specs.Process{Args: args, Env: env, Cwd: "/"},
	}
	data, err := json.Marshal(&spec)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, configFilename), data, 0o644))
	return dir
}

func TestReadBundle(t *testing.T) {
	dir := writeBundle(t, "+.", []string{"/prog.bf"}, []string{"PATH=/bin", "BF_TAPE_SIZE=64", "BF_EOF=zero"})
	b, err := ReadBundle(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, b.Root, filepath.Join(dir, "rootfs"))
	utils.AssertEqual(t, b.Entrypoint, "/prog.bf")
	utils.AssertEqual(t, b.FullPath(), filepath.Join(dir, "rootfs", "prog.bf"))

	c, err := b.Config()
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, c.TapeSize, 64)
	utils.AssertEqual(t, c.EOF, bf.EOFZero)
	utils.AssertEqual(t, c.File, b.FullPath())
}

func TestReadBundle_Missing(t *testing.T) {
	_, err := ReadBundle(t.TempDir())
	utils.Assert(t, errdefs.IsNotFound(err), "expected not found, got "+err.Error())
}

func TestReadBundle_Invalid(t *testing.T) {
	cases := map[string][]string{
		"no args":      nil,
		"two args":     {"/prog.bf", "/other.bf"},
		"wrong ext":    {"/prog.sh"},
		"missing file": {"/missing.bf"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadBundle(writeBundle(t, "+", args, nil))
			utils.AssertError(t, err)
			utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
		})
	}
}

func TestReadBundle_NoRoot(t *testing.T) {
	dir := t.TempDir()
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, configFilename), []byte(`{"process":{"args":["/a.bf"]}}`), 0o644))
	_, err := ReadBundle(dir)
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
}

func TestBundle_ConfigInvalidEnv(t *testing.T) {
	dir := writeBundle(t, "+", []string{"/prog.bf"}, []string{"BF_TAPE_SIZE=-4"})
	b, err := ReadBundle(dir)
	utils.AssertNoError(t, err)
	_, err = b.Config()
	utils.AssertErrorIs(t, err, bf.ErrInvalidTapeSize)
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
}

func TestPidFile(t *testing.T) {
	dir := t.TempDir()
	utils.AssertNoError(t, writePidFile(dir, 4242))
	pid, err := readPidFile(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, pid, 4242)

	_, err = readPidFile(t.TempDir())
	utils.AssertError(t, err)
}
