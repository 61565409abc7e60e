package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
)

// File is a filesystem source. The extracts are scanned front to back exactly
// once, so Open hints sequential access to the kernel where the platform
// supports it.
type File struct{ path string }

// NewFile returns a Source reading from path.
func NewFile(path string) *File { return &File{path: path} }

// Open opens the file for reading. A canceled context returns before the
// filesystem is touched; open errors keep errors.Is(err, os.ErrNotExist)
// working through the wrap.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	adviseSequential(fh)
	return fh, nil
}
