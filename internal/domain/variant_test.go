package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantParams(t *testing.T) {
	tests := []struct {
		variant   Variant
		num, den  BandID
		threshold float64
		suffix    string
	}{
		{VegetationIndex, BandNIR, BandRed, 0.17767, "dndvi"},
		{BurnIndex, BandNIR, BandSWIR, 0.100, "dnbr"},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			p, err := tt.variant.Params()
			require.NoError(t, err)
			assert.Equal(t, tt.num, p.Numerator)
			assert.Equal(t, tt.den, p.Denominator)
			assert.Equal(t, tt.threshold, p.Threshold)
			assert.Equal(t, tt.suffix, p.Suffix)
		})
	}

	_, err := Variant("ndwi").Params()
	assert.Error(t, err)
}

func TestVariantBands(t *testing.T) {
	p, err := VegetationIndex.Params()
	require.NoError(t, err)
	assert.Equal(t, BandSet{BandRed, BandNIR}, p.PreBands())
	assert.Equal(t, BandSet{BandBlue, BandGreen, BandRed, BandNIR, BandSWIR}, p.PostBands())

	p, err = BurnIndex.Params()
	require.NoError(t, err)
	assert.Equal(t, BandSet{BandNIR, BandSWIR}, p.PreBands())
	assert.Equal(t, BandSet{BandBlue, BandGreen, BandRed, BandNIR, BandSWIR}, p.PostBands())
}

func TestParseVariant(t *testing.T) {
	tests := map[string]Variant{
		"vegetation-index": VegetationIndex,
		"dndvi":            VegetationIndex,
		" DNBR ":           BurnIndex,
		"burn-index":       BurnIndex,
	}
	for in, want := range tests {
		got, err := ParseVariant(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVariant("ndwi")
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	fire := time.Date(2020, 8, 20, 15, 30, 0, 0, time.UTC)

	got, err := OutputName("monchique", fire, BurnIndex)
	require.NoError(t, err)
	assert.Equal(t, "monchique_20200820_dnbr", got)

	got, err = OutputName("monchique", fire, VegetationIndex)
	require.NoError(t, err)
	assert.Equal(t, "monchique_20200820_dndvi", got)

	_, err = OutputName("x", fire, Variant("bogus"))
	assert.Error(t, err)
}

func TestBandSet(t *testing.T) {
	s := NewBandSet(BandSWIR, BandRed, BandRed, BandBlue)
	assert.Equal(t, BandSet{BandBlue, BandRed, BandSWIR}, s)
	assert.True(t, s.Contains(BandRed))
	assert.False(t, s.Contains(BandNIR))
	assert.Equal(t, "{B02,B04,B12}", s.String())
	assert.Equal(t, BandSet{BandBlue, BandRed, BandNIR, BandSWIR}, s.Union(BandSet{BandNIR, BandRed}))
}

func TestCompositeFileName(t *testing.T) {
	names := make([]string, len(Composites))
	for i, c := range Composites {
		names[i] = c.FileName("fire")
	}
	assert.Equal(t, []string{"fire_RGB_4_3_2.tif", "fire_RGB_8_4_3.tif", "fire_RGB_12_8_4.tif"}, names)
}
