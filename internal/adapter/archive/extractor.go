// Package archive reads and writes Sentinel-2 product zip archives.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// Extractor copies band images out of product archives, several at a time.
type Extractor struct {
	concurrency int
	logger      *slog.Logger
}

// NewExtractor returns an Extractor running at most concurrency copies at once.
func NewExtractor(concurrency int, logger *slog.Logger) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{concurrency: concurrency, logger: logger}
}

// job is one (archive, band) extraction.
type job struct {
	archive int
	band    domain.BandID
	file    *zip.File
	target  string
}

// entryKey identifies one entry of one archive file.
type entryKey struct {
	archive string
	entry   string
}

// Extract locates every band in every archive and copies the chosen entries
// under dir/<n>/, keeping their path inside the archive, where n numbers the
// distinct archive files in order. The result lists each band's images in
// archive order regardless of completion order.
func (e *Extractor) Extract(ctx context.Context, archives []domain.ArchiveRef, bands domain.BandSet, dir string) (domain.ExtractedBands, error) {
	readers := make([]*zip.ReadCloser, 0, len(archives))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	var jobs []job
	subdirs := make(map[string]string, len(archives))
	for i, a := range archives {
		key := filepath.Clean(a.Path)
		subdir, ok := subdirs[key]
		if !ok {
			subdir = filepath.Join(dir, strconv.Itoa(len(subdirs)))
			subdirs[key] = subdir
		}

		r, err := zip.OpenReader(a.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrExtraction, a.Name(), err)
		}
		readers = append(readers, r)

		byName := make(map[string]*zip.File, len(r.File))
		names := make([]string, 0, len(r.File))
		for _, f := range r.File {
			if f.FileInfo().IsDir() {
				continue
			}
			byName[f.Name] = f
			names = append(names, f.Name)
		}

		for _, band := range bands {
			entry, err := domain.LocateBand(band, names)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", a.Name(), err)
			}
			target, err := safeJoin(subdir, entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, a.Name(), err)
			}
			jobs = append(jobs, job{archive: i, band: band, file: byName[entry], target: target})
		}
	}

	// Each slot is written by exactly one goroutine.
	slots := make([]domain.ExtractedBandImage, len(jobs))
	done := make(map[entryKey]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, j := range jobs {
		_, res, _ := domain.ParseBandEntry(j.file.Name)
		slots[i] = domain.ExtractedBandImage{
			Band:       j.band,
			Resolution: res,
			Path:       j.target,
			Archive:    archives[j.archive],
		}
		// The same archive listed twice shares one copy.
		key := entryKey{archive: filepath.Clean(archives[j.archive].Path), entry: j.file.Name}
		if done[key] {
			continue
		}
		done[key] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := copyEntry(j.file, j.target); err != nil {
				return fmt.Errorf("%w: %s from %s: %w", domain.ErrExtraction, j.band, archives[j.archive].Name(), err)
			}
			e.logger.Debug("band extracted", "band", j.band, "archive", archives[j.archive].Name(), "path", j.target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(domain.ExtractedBands, len(bands))
	for _, img := range slots {
		out[img.Band] = append(out[img.Band], img)
	}
	e.logger.Info("bands extracted", "archives", len(archives), "bands", bands.String(), "images", len(slots))
	return out, nil
}

// ListEntries returns the file names inside an archive in listing order.
func ListEntries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrExtraction, filepath.Base(path), err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func copyEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// safeJoin joins an archive entry name onto dir, rejecting names that would
// escape it.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("entry %q escapes the working area", name)
	}
	return target, nil
}
