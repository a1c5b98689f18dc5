package domain

import (
	"fmt"
	"strings"
	"time"
)

// Variant selects the spectral index used for change detection.
type Variant string

const (
	VegetationIndex Variant = "vegetation-index"
	BurnIndex       Variant = "burn-index"
)

// VariantParams are the fixed parameters of a variant.
type VariantParams struct {
	Numerator   BandID
	Denominator BandID
	Threshold   float64
	Suffix      string // short name used in output prefixes
}

var variants = map[Variant]VariantParams{
	VegetationIndex: {Numerator: BandNIR, Denominator: BandRed, Threshold: 0.17767, Suffix: "dndvi"},
	BurnIndex:       {Numerator: BandNIR, Denominator: BandSWIR, Threshold: 0.100, Suffix: "dnbr"},
}

// ParseVariant accepts a variant name or its short suffix ("dndvi", "dnbr").
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, p := range variants {
		if s == string(v) || s == p.Suffix {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q (want %q or %q)", s, VegetationIndex, BurnIndex)
}

// Params returns the variant's fixed parameters.
func (v Variant) Params() (VariantParams, error) {
	p, ok := variants[v]
	if !ok {
		return VariantParams{}, fmt.Errorf("unknown variant %q", string(v))
	}
	return p, nil
}

// PreBands is the minimum band set for the pre-fire period.
func (p VariantParams) PreBands() BandSet {
	return NewBandSet(p.Numerator, p.Denominator)
}

// PostBands is the index pair plus the composite bands.
func (p VariantParams) PostBands() BandSet {
	return p.PreBands().Union(CompositeBands)
}

// OutputName builds "<prefix>_<YYYYMMDD>_<suffix>" for a fire date.
func OutputName(prefix string, fireDate time.Time, v Variant) (string, error) {
	p, err := v.Params()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s", prefix, fireDate.Format("20060102"), p.Suffix), nil
}
