package domain

import (
	"fmt"
	"slices"
	"strings"
)

// BandID identifies a Sentinel-2 spectral band by number (B04 → 4).
type BandID int

const (
	BandBlue  BandID = 2
	BandGreen BandID = 3
	BandRed   BandID = 4
	BandNIR   BandID = 8
	BandSWIR  BandID = 12
)

func (b BandID) String() string {
	return fmt.Sprintf("B%02d", int(b))
}

// BandSet is a sorted, duplicate-free list of bands.
type BandSet []BandID

// NewBandSet returns the sorted set of the given bands.
func NewBandSet(bands ...BandID) BandSet {
	set := slices.Clone(bands)
	slices.Sort(set)
	return slices.Compact(set)
}

// Contains reports whether b is in the set.
func (s BandSet) Contains(b BandID) bool {
	_, found := slices.BinarySearch(s, b)
	return found
}

// Union returns a new set holding the bands of both sets.
func (s BandSet) Union(other BandSet) BandSet {
	return NewBandSet(append(slices.Clone(s), other...)...)
}

func (s BandSet) String() string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// CompositeBands are always extracted for the post-fire period.
var CompositeBands = NewBandSet(BandBlue, BandGreen, BandRed, BandNIR, BandSWIR)

// Composite is a false-colour band triple in R, G, B order.
type Composite [3]BandID

// Composites are the false-colour stacks written from the post-fire period.
var Composites = []Composite{
	{BandRed, BandGreen, BandBlue},
	{BandNIR, BandRed, BandGreen},
	{BandSWIR, BandNIR, BandRed},
}

// FileName returns the composite raster name for an output prefix,
// e.g. "aap_RGB_8_4_3.tif".
func (c Composite) FileName(prefix string) string {
	return fmt.Sprintf("%s_RGB_%d_%d_%d.tif", prefix, c[0], c[1], c[2])
}
