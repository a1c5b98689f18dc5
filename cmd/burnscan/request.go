package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

// requestFile is the YAML form of an analysis. Besides the explicit pre and
// post lists it accepts a flat archive list split on the fire date, an
// output prefix combined with the fire date, and an area code looked up in
// the boundary index.
type requestFile struct {
	pipeline.Request `yaml:",inline"`

	Archives []domain.ArchiveRef `yaml:"archives,omitempty"`
	FireDate string              `yaml:"fire_date,omitempty"`
	Prefix   string              `yaml:"prefix,omitempty"`
	Area     string              `yaml:"area,omitempty"`
}

func loadRequestFile(path string) (requestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return requestFile{}, fmt.Errorf("read request: %w", err)
	}
	var rf requestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return requestFile{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	// Relative archive and boundary paths are relative to the file.
	base := filepath.Dir(path)
	rf.Pre = resolvePaths(base, rf.Pre)
	rf.Post = resolvePaths(base, rf.Post)
	rf.Archives = resolvePaths(base, rf.Archives)
	if rf.Boundary != "" && !filepath.IsAbs(rf.Boundary) {
		rf.Boundary = filepath.Join(base, rf.Boundary)
	}
	return rf, nil
}

func writeRequestFile(path string, rf requestFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func resolvePaths(base string, refs []domain.ArchiveRef) []domain.ArchiveRef {
	out := make([]domain.ArchiveRef, len(refs))
	for i, r := range refs {
		out[i] = r
		if !filepath.IsAbs(r.Path) {
			out[i].Path = filepath.Join(base, r.Path)
		}
	}
	return out
}

// areaExporter writes the boundary of an administrative area to a shapefile.
type areaExporter interface {
	Export(ctx context.Context, code, dst string) error
}

// resolve turns the file form into a pipeline request. boundaryDir receives
// exported area boundaries.
func (rf requestFile) resolve(ctx context.Context, areas areaExporter, boundaryDir string) (pipeline.Request, error) {
	req := rf.Request

	if rf.Variant != "" {
		v, err := domain.ParseVariant(string(rf.Variant))
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Variant = v
	}

	var fireDate time.Time
	if rf.FireDate != "" {
		d, err := time.Parse(time.DateOnly, rf.FireDate)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("fire date %q: want YYYY-MM-DD", rf.FireDate)
		}
		fireDate = d
	}

	if len(rf.Archives) > 0 {
		if fireDate.IsZero() {
			return pipeline.Request{}, errors.New("archives need a fire date to be split into pre and post")
		}
		pre, post, err := domain.SplitByFireDate(rf.Archives, fireDate)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Pre = append(req.Pre, pre...)
		req.Post = append(req.Post, post...)
	}

	if req.OutputName == "" && rf.Prefix != "" {
		if fireDate.IsZero() {
			return pipeline.Request{}, errors.New("an output prefix needs a fire date")
		}
		name, err := domain.OutputName(rf.Prefix, fireDate, req.Variant)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.OutputName = name
	}

	if req.Boundary == "" && rf.Area != "" {
		dst := filepath.Join(boundaryDir, rf.Area+".shp")
		if err := areas.Export(ctx, rf.Area, dst); err != nil {
			return pipeline.Request{}, err
		}
		req.Boundary = dst
	}
	return req, nil
}
