package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultPublicPrefix is where the router serves uploaded avatars from.
	DefaultPublicPrefix = "/avatars"

	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Local writes objects into a directory that the API serves statically.
type Local struct {
	dir    string
	prefix string
}

// NewLocal stores files under dir, served at prefix (e.g. "/avatars").
func NewLocal(dir, prefix string) *Local {
	if prefix == "" {
		prefix = DefaultPublicPrefix
	}
	return &Local{
		dir:    dir,
		prefix: "/" + strings.Trim(prefix, "/"),
	}
}

func (l *Local) Name() string { return "local" }

// Dir returns the directory files are written to.
func (l *Local) Dir() string { return l.dir }

// Prefix returns the URL path files are served under.
func (l *Local) Prefix() string { return l.prefix }

func (l *Local) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.dir, dirPermissions); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", l.dir, err)
	}

	dst := filepath.Join(l.dir, name)
	// O_EXCL: names are unique per upload, never overwrite.
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return path.Join(l.prefix, name), nil
}
