package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lister returns the JSON listing of the suite at source.
type Lister interface {
	List(ctx context.Context, source string) ([]byte, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context, source string) ([]byte, error)

func (f ListerFunc) List(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// FileLister reads listings from disk. Files ending in .yaml or .yml are
// converted to JSON; anything else is read as JSON.
type FileLister struct {
	Dir string // base for relative sources
}

func (l FileLister) List(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := source
	if l.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlToJSON(data)
	}
	return data, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML listing: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert YAML listing: %w", err)
	}
	return out, nil
}

// SourcePlaceholder is replaced by the suite source in CommandLister.Argv.
const SourcePlaceholder = "{{source}}"

// CommandLister runs an external command and reads the listing from its
// standard output. A non-zero exit status is an error.
type CommandLister struct {
	Argv []string // argv[0] is the binary
	Dir  string
	Env  []string // appended to the current environment
}

func (l CommandLister) List(ctx context.Context, source string) ([]byte, error) {
	if len(l.Argv) == 0 {
		return nil, fmt.Errorf("listing command has no argv")
	}
	argv := make([]string, len(l.Argv))
	for i, arg := range l.Argv {
		argv[i] = strings.ReplaceAll(arg, SourcePlaceholder, source)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //#nosec G204 -- argv comes from the user's configuration
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("listing command %q: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("listing command %q: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}
