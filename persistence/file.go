package persistence

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/annkit/internal/mmap"
)

// SaveToFile atomically replaces filename with the output of writeFunc:
// data goes to a temp file in the same directory, is fsynced, then
// renamed over the target.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""

	// Make the rename durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile opens filename and passes a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return readFunc(bufio.NewReaderSize(f, 256*1024))
}

// MmapFile maps filename read-only. The caller closes the mapping once no
// view into it is in use.
func MmapFile(filename string) (*mmap.Mapping, error) {
	m, err := mmap.Open(filename)
	if err != nil {
		return nil, err
	}
	if m.Size() < HeaderSize+TrailerSize {
		_ = m.Close()
		return nil, ErrTruncated
	}
	_ = m.Advise(mmap.AccessRandom)
	return m, nil
}
