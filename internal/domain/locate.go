package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// bandEntryRe matches archive entries ending in a band and resolution suffix,
// e.g. "T29SNB_20200815T112121_B04_10m.jp2" -> band=04, resolution=10.
var bandEntryRe = regexp.MustCompile(`B(\d{2})_(\d+)m\.(?i:jp2)$`)

// ParseBandEntry extracts the band and resolution (metres) from an archive
// entry name.
func ParseBandEntry(name string) (band BandID, resolution int, ok bool) {
	m := bandEntryRe.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	id, errB := strconv.Atoi(m[1])
	res, errR := strconv.Atoi(m[2])
	if errB != nil || errR != nil {
		return 0, 0, false
	}
	return BandID(id), res, true
}

// LocateBand returns the finest-resolution entry for band in an archive
// listing. Entries with equal resolution resolve to the first one listed.
func LocateBand(band BandID, entries []string) (string, error) {
	best, bestRes := "", 0
	for _, name := range entries {
		b, res, ok := ParseBandEntry(name)
		if !ok || b != band {
			continue
		}
		if best == "" || res < bestRes {
			best, bestRes = name, res
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no %s image in archive listing", ErrBandNotFound, band)
	}
	return best, nil
}
