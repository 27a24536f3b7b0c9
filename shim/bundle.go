package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/MarcinKonowalczyk/bfvm/runner"
)

const configFilename = "config.json"

// Extensions accepted for the container entrypoint.
var sourceExtensions = []string{".bf", ".b", ".brainfuck"}

// Bundle is what the shim needs from an OCI bundle to run a program.
type Bundle struct {
	// Path is the bundle directory
	Path string
	// Root is the absolute path of the rootfs
	Root string
	// Entrypoint is the program path relative to Root
	Entrypoint string
	Env        []string
}

// /var/run/desktop-containerd/daemon/io.containerd.runtime.v2.task/moby/<id>

// ReadBundle reads config.json from the bundle directory. The process must
// have exactly one argument naming a brainfuck source file in the rootfs.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(path, configFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrNotFound)
		}
		return nil, err
	}

	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %v: %w", configFilename, err, errdefs.ErrInvalidArgument)
	}

	if spec.Root == nil || spec.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}
	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(path, root)
	}

	if spec.Process == nil || len(spec.Process.Args) != 1 {
		n := 0
		if spec.Process != nil {
			n = len(spec.Process.Args)
		}
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", n, errdefs.ErrInvalidArgument)
	}
	entrypoint := spec.Process.Args[0]

	if !slices.Contains(sourceExtensions, filepath.Ext(entrypoint)) {
		return nil, fmt.Errorf("entry point (%s) is not a .bf file: %w", entrypoint, errdefs.ErrInvalidArgument)
	}

	script := filepath.Join(root, entrypoint)
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", entrypoint, errdefs.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	return &Bundle{
		Path:       path,
		Root:       root,
		Entrypoint: entrypoint,
		Env:        spec.Process.Env,
	}, nil
}

func (b *Bundle) FullPath() string {
	return filepath.Join(b.Root, b.Entrypoint)
}

// Config builds the run configuration from the container environment.
func (b *Bundle) Config() (runner.Config, error) {
	c := runner.DefaultConfig()
	if err := c.FromEnv(b.Env); err != nil {
		return c, fmt.Errorf("%w: %w", err, errdefs.ErrInvalidArgument)
	}
	c.File = b.FullPath()
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: %w", err, errdefs.ErrInvalidArgument)
	}
	return c, nil
}
