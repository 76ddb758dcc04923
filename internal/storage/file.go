package storage

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/23skdu/bandcluster/internal/metrics"
)

// Output kinds used for file errors and the bytes-written metric.
const (
	KindClustersParquet = "clusters_parquet"
	KindClustersIPC     = "clusters_ipc"
	KindLabelsParquet   = "labels_parquet"
)

// countingWriter counts bytes passed to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFile writes an output file atomically: fn writes into a temporary
// file next to path which is renamed over path only after fn succeeds and
// the data is synced. It returns the number of bytes written.
func WriteFile(path, kind string, fn func(io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, NewFileError("create", kind, path, err)
	}
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmp.Name())
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	cw := &countingWriter{w: bw}
	if err := fn(cw); err != nil {
		_ = tmp.Close()
		return 0, NewFileError("write", kind, path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return 0, NewFileError("write", kind, path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, NewFileError("sync", kind, path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, NewFileError("close", kind, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, NewFileError("rename", kind, path, err)
	}

	metrics.OutputBytesWritten.WithLabelValues(kind).Add(float64(cw.n))
	return cw.n, nil
}
