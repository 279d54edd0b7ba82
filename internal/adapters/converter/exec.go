package converter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/converti/converti-api/internal/domain/model"
)

// LookPathFunc resolves a binary name to a path, like exec.LookPath.
type LookPathFunc func(name string) (string, error)

// CommandRunner executes an external tool.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs tools with os/exec and turns non-zero exits into
// *model.ConversionError carrying the tool's stderr.
type ExecRunner struct{}

// Run executes name with args and waits for it to finish.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Could not start the tool at all.
		return err
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = name + " failed: " + exitErr.Error()
	}
	return &model.ConversionError{Message: msg, Cause: err}
}

// toolSet caches the resolved paths of the tools a capability depends on.
type toolSet map[string]string

func resolveTools(lookPath LookPathFunc, names ...string) toolSet {
	tools := make(toolSet, len(names))
	for _, name := range names {
		if path, err := lookPath(name); err == nil {
			tools[name] = path
		}
	}
	return tools
}

func (t toolSet) has(name string) bool {
	_, ok := t[name]
	return ok
}

func (t toolSet) path(name string) (string, error) {
	p, ok := t[name]
	if !ok {
		return "", model.NewConversionError("%s binary not found in PATH", name)
	}
	return p, nil
}
