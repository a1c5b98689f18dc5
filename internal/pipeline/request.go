package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// Request describes one analysis. Archive order matters: where sources
// overlap, later archives win in the mosaic.
type Request struct {
	ID         string              `json:"id,omitempty" yaml:"id,omitempty"`
	Pre        []domain.ArchiveRef `json:"pre" yaml:"pre"`
	Post       []domain.ArchiveRef `json:"post" yaml:"post"`
	Boundary   string              `json:"boundary" yaml:"boundary"`
	Variant    domain.Variant      `json:"variant" yaml:"variant"`
	OutputName string              `json:"output_name" yaml:"output_name"`
}

// Validate checks that the request is complete before any work starts.
func (r Request) Validate() error {
	var errs []error
	if len(r.Pre) == 0 {
		errs = append(errs, errors.New("at least one pre-fire archive is required"))
	}
	if len(r.Post) == 0 {
		errs = append(errs, errors.New("at least one post-fire archive is required"))
	}
	if r.Boundary == "" {
		errs = append(errs, errors.New("boundary is required"))
	}
	if _, err := r.Variant.Params(); err != nil {
		errs = append(errs, err)
	}
	switch {
	case r.OutputName == "":
		errs = append(errs, errors.New("output name is required"))
	case strings.ContainsAny(r.OutputName, `/\`) || r.OutputName == "." || r.OutputName == "..":
		errs = append(errs, fmt.Errorf("output name %q must be a plain file name", r.OutputName))
	}
	return errors.Join(errs...)
}

// Result lists what a successful run produced.
type Result struct {
	RunID          string   `json:"run_id"`
	VectorPath     string   `json:"vector_path"`
	ProjectionPath string   `json:"projection_path"`
	Composites     []string `json:"composites"`
	Features       int      `json:"features"`
	BurnedPixels   int      `json:"burned_pixels"`
	BurnedAreaHa   float64  `json:"burned_area_ha"`
}
