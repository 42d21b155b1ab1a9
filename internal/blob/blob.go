// Package blob stores uploaded file bytes. The chat core only keeps the
// returned URL and metadata.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Provider interface {
	// Put stores r under name and returns the public URL of the object.
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// Delete removes the object stored under name. A missing object is not an error.
	Delete(ctx context.Context, name string) error
}

// Disk keeps objects in a local directory served under BaseURL.
type Disk struct {
	Dir     string
	BaseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", dir, err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func objectName(name string) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "", fmt.Errorf("blob: invalid object name")
	}
	return name, nil
}

func (d *Disk) Put(ctx context.Context, name, _ string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := objectName(name)
	if err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", fmt.Errorf("blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("blob: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w", name, err)
	}
	return d.BaseURL + "/" + url.PathEscape(name), nil
}

func (d *Disk) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := objectName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.Dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", name, err)
	}
	return nil
}
