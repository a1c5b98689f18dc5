package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGranule = "S2A_MSIL2A_20200815T112121_N0214_R037_T29SNB_20200815T131012.SAFE/GRANULE/L2A_T29SNB/IMG_DATA"

func TestLocateBand(t *testing.T) {
	t.Run("finest resolution wins", func(t *testing.T) {
		entries := []string{
			testGranule + "/R20m/T29SNB_20200815T112121_B04_20m.jp2",
			testGranule + "/R10m/T29SNB_20200815T112121_B04_10m.jp2",
			testGranule + "/R60m/T29SNB_20200815T112121_B04_60m.jp2",
		}
		got, err := LocateBand(BandRed, entries)
		require.NoError(t, err)
		assert.Equal(t, entries[1], got)
	})

	t.Run("equal resolution resolves to first listed", func(t *testing.T) {
		entries := []string{
			"a/T29SNB_B12_20m.jp2",
			"b/T29SNB_B12_20m.jp2",
			"c/T29SNB_B12_60m.jp2",
		}
		got, err := LocateBand(BandSWIR, entries)
		require.NoError(t, err)
		assert.Equal(t, "a/T29SNB_B12_20m.jp2", got)
	})

	t.Run("other bands ignored", func(t *testing.T) {
		entries := []string{
			"R10m/T29SNB_B08_10m.jp2",
			"R20m/T29SNB_B8A_20m.jp2",
			"R10m/T29SNB_B04_10m.jp2",
			"R10m/T29SNB_TCI_10m.jp2",
		}
		got, err := LocateBand(BandNIR, entries)
		require.NoError(t, err)
		assert.Equal(t, "R10m/T29SNB_B08_10m.jp2", got)
	})

	t.Run("non image extension ignored", func(t *testing.T) {
		entries := []string{"R10m/T29SNB_B08_10m.jp2.aux.xml", "R10m/T29SNB_B08_10m.JP2"}
		got, err := LocateBand(BandNIR, entries)
		require.NoError(t, err)
		assert.Equal(t, "R10m/T29SNB_B08_10m.JP2", got)
	})

	t.Run("missing band", func(t *testing.T) {
		_, err := LocateBand(BandSWIR, []string{"R10m/T29SNB_B04_10m.jp2"})
		require.ErrorIs(t, err, ErrBandNotFound)
		assert.Contains(t, err.Error(), "B12")
	})

	t.Run("empty listing", func(t *testing.T) {
		_, err := LocateBand(BandRed, nil)
		assert.ErrorIs(t, err, ErrBandNotFound)
	})
}

func TestParseBandEntry(t *testing.T) {
	tests := []struct {
		name string
		band BandID
		res  int
		ok   bool
	}{
		{"T29SNB_20200815T112121_B02_10m.jp2", BandBlue, 10, true},
		{"dir/T29SNB_20200815T112121_B12_20m.jp2", BandSWIR, 20, true},
		{"T29SNB_20200815T112121_B03_60m.jp2", BandGreen, 60, true},
		{"T29SNB_20200815T112121_AOT_10m.jp2", 0, 0, false},
		{"T29SNB_20200815T112121_B04_10m.tif", 0, 0, false},
		{"MTD_MSIL2A.xml", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, res, ok := ParseBandEntry(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.band, band)
			assert.Equal(t, tt.res, res)
		})
	}
}
