package domain

import (
	"maps"
	"path/filepath"
	"slices"
)

// Period distinguishes the pre-fire and post-fire acquisitions.
type Period string

const (
	PeriodPre  Period = "pre"
	PeriodPost Period = "post"
)

// ArchiveRef points at one locally readable product archive.
type ArchiveRef struct {
	Path string `json:"path" yaml:"path"`
}

// Name returns the archive file name.
func (a ArchiveRef) Name() string {
	return filepath.Base(a.Path)
}

// ExtractedBandImage is a single-band image copied out of an archive.
type ExtractedBandImage struct {
	Band       BandID
	Resolution int // metres per pixel
	Path       string
	Archive    ArchiveRef
}

// ExtractedBands maps each band to its images in archive order. Order matters
// for mosaicking: later images win where sources overlap.
type ExtractedBands map[BandID][]ExtractedBandImage

// Paths returns the image paths for band in archive order.
func (e ExtractedBands) Paths(band BandID) []string {
	images := e[band]
	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.Path
	}
	return paths
}

// AlignedRasterSet holds one clipped raster per band for a period. All members
// share the same grid, extent and no-data value. The set is immutable once
// constructed.
type AlignedRasterSet struct {
	period Period
	paths  map[BandID]string
}

// NewAlignedRasterSet copies paths into a new set.
func NewAlignedRasterSet(period Period, paths map[BandID]string) AlignedRasterSet {
	return AlignedRasterSet{period: period, paths: maps.Clone(paths)}
}

func (s AlignedRasterSet) Period() Period {
	return s.period
}

// Path returns the raster path for band.
func (s AlignedRasterSet) Path(band BandID) (string, bool) {
	p, ok := s.paths[band]
	return p, ok
}

// Bands returns the bands present in the set.
func (s AlignedRasterSet) Bands() BandSet {
	return NewBandSet(slices.Collect(maps.Keys(s.paths))...)
}

func (s AlignedRasterSet) Len() int {
	return len(s.paths)
}
