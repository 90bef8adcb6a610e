package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Local writes objects under a directory served as static files.
type Local struct {
	dir        string
	publicBase string
	maxBytes   int64
}

// NewLocal stores files in dir and links them under publicBase. maxBytes <= 0 disables the limit.
func NewLocal(dir, publicBase string, maxBytes int64) *Local {
	return &Local{dir: dir, publicBase: publicBase, maxBytes: maxBytes}
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}

	src := r
	if l.maxBytes > 0 {
		src = &io.LimitedReader{R: r, N: l.maxBytes + 1}
	}
	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && l.maxBytes > 0 && written > l.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}
	return &Object{Key: key, URL: l.URL(key), Size: written, ContentType: contentType}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) URL(key string) string {
	return joinURL(l.publicBase, key)
}
