package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
)

// Entry is one file to place in an archive.
type Entry struct {
	Name   string // slash-separated path inside the archive
	Source string // local file to copy in; empty writes Data
	Data   []byte
}

// Write creates a zip archive at path holding entries in order.
func Write(path string, entries []Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if e.Source == "" {
			if _, err := w.Write(e.Data); err != nil {
				return fmt.Errorf("write %s: %w", e.Name, err)
			}
			continue
		}
		if err := copyFile(w, e.Source); err != nil {
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

func copyFile(w io.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
