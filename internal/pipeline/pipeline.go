package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
)

// Extractor copies the requested bands out of product archives into dir.
type Extractor interface {
	Extract(ctx context.Context, archives []domain.ArchiveRef, bands domain.BandSet, dir string) (domain.ExtractedBands, error)
}

// ClipMosaicker merges each band's images into one raster on the fixed grid,
// clipped to the boundary polygon.
type ClipMosaicker interface {
	ClipMosaic(ctx context.Context, period domain.Period, images domain.ExtractedBands, boundary, dir string) (domain.AlignedRasterSet, error)
}

// RasterStore reads and writes single-band and composite GeoTIFFs.
type RasterStore interface {
	ReadRaster(path string) (*domain.Raster, error)
	WriteRaster(path string, r *domain.Raster) error
	WriteComposite(path string, bands [3]*domain.Raster) error
}

// Vectorizer converts the burn mask to polygons and writes projection files.
type Vectorizer interface {
	// Polygonize writes one feature per connected burned region of the mask
	// to a new shapefile at dstPath and returns the feature count.
	Polygonize(ctx context.Context, maskPath, boundary, dstPath string) (int, error)
	WriteProjection(path string, epsg int) error
}

// RunRecorder persists run state. Failures are logged, never fatal.
type RunRecorder interface {
	StartRun(ctx context.Context, run domain.Run) error
	UpdateProgress(ctx context.Context, id string, percent int, message string) error
	FinishRun(ctx context.Context, run domain.Run) error
}

// EventPublisher announces finished runs. Failures are logged, never fatal.
type EventPublisher interface {
	Publish(ctx context.Context, run domain.Run) error
}

// Stages groups the collaborators that do the raster and vector work.
type Stages struct {
	Extractor  Extractor
	Clipper    ClipMosaicker
	Rasters    RasterStore
	Vectorizer Vectorizer
}

// Dirs locates the working areas and the results.
type Dirs struct {
	WorkRoot string
	Results  string
}

// Option configures optional collaborators.
type Option func(*Pipeline)

// WithRecorder records run state as the run progresses.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithPublisher publishes a completion event for every finished run.
func WithPublisher(pub EventPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// Pipeline runs burned-area analyses. Runs are independent; a Pipeline may
// execute several concurrently as long as their output names differ.
type Pipeline struct {
	stages    Stages
	dirs      Dirs
	logger    *slog.Logger
	metrics   *observability.Metrics
	recorder  RunRecorder
	publisher EventPublisher
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, dirs Dirs, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:  stages,
		dirs:    dirs,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil when the working and results locations are usable.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	for _, dir := range []string{p.dirs.WorkRoot, p.dirs.Results} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("directory %s not usable: %w", dir, err)
		}
	}
	return nil
}

// run carries the state of one analysis through its stages.
type run struct {
	req    Request
	params domain.VariantParams
	record domain.Run
	sink   domain.ProgressSink
	logger *slog.Logger
	dir    string

	pre, post domain.AlignedRasterSet
	reference *domain.Raster // pre-fire numerator raster; its grid is the output grid
	mask      *domain.Raster
	result    Result
}

// Run executes one analysis to completion. The working area is removed
// whether the run succeeds or fails. ctx is passed to I/O only; a run is not
// abandoned between stages. Errors are *RunError values.
func (p *Pipeline) Run(ctx context.Context, req Request, sink domain.ProgressSink) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid request: %w", err)
	}
	params, _ := req.Variant.Params()
	if sink == nil {
		sink = domain.NopProgress
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	r := &run{
		req:    req,
		params: params,
		sink:   sink,
		logger: p.logger.With("run_id", id, "output", req.OutputName, "variant", req.Variant),
		record: domain.Run{
			ID:         id,
			OutputName: req.OutputName,
			Variant:    req.Variant,
			Status:     domain.RunRunning,
			StartedAt:  domain.Now(),
		},
	}
	r.result.RunID = id

	p.metrics.RunsInProgress.Inc()
	defer p.metrics.RunsInProgress.Dec()
	start := time.Now()

	if p.recorder != nil {
		if err := p.recorder.StartRun(ctx, r.record); err != nil {
			r.logger.Warn("record run start failed", "error", err)
		}
	}
	r.logger.Info("analysis started", "pre_archives", len(req.Pre), "post_archives", len(req.Post))

	err := p.execute(ctx, r)
	p.finish(ctx, r, err, time.Since(start))
	if err != nil {
		return Result{RunID: id}, err
	}
	return r.result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	if err := p.stage(r, StageWorkspace, func() error {
		dir, err := createWorkspace(p.dirs.WorkRoot, domain.Now())
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
		}
		r.dir = dir
		if err := os.MkdirAll(p.dirs.Results, 0o755); err != nil {
			return fmt.Errorf("%w: create results directory: %w", domain.ErrArtifactWrite, err)
		}
		return nil
	}); err != nil {
		return err
	}

	removed := false
	defer func() {
		if removed {
			return
		}
		if err := os.RemoveAll(r.dir); err != nil {
			r.logger.Warn("remove working area failed", "dir", r.dir, "error", err)
		}
	}()

	p.progress(ctx, r, 5, "Extracting bands and clipping them to the boundary")
	if err := p.extractAndClip(ctx, r); err != nil {
		return err
	}

	p.progress(ctx, r, 20, "Computing spectral indices")
	diff, err := p.computeDifference(r)
	if err != nil {
		return err
	}

	p.progress(ctx, r, 25, "Applying 5x5 median filter and reclassifying")
	if err := p.filterAndReclassify(r, diff); err != nil {
		return err
	}

	p.progress(ctx, r, 70, "Converting the burn mask to polygons")
	if err := p.vectorize(ctx, r); err != nil {
		return err
	}

	p.progress(ctx, r, 95, "Writing false-colour composites and projection file")
	if err := p.writeArtifacts(r); err != nil {
		return err
	}

	p.progress(ctx, r, 99, "Removing working area")
	_ = p.stage(r, StageCleanup, func() error {
		if err := os.RemoveAll(r.dir); err != nil {
			r.logger.Warn("remove working area failed", "dir", r.dir, "error", err)
		}
		return nil
	})
	removed = true

	p.progress(ctx, r, 100, fmt.Sprintf("Complete: burn polygons and composites are in %s", p.dirs.Results))
	return nil
}

func (p *Pipeline) extractAndClip(ctx context.Context, r *run) error {
	sets := make(map[domain.Period]domain.AlignedRasterSet, 2)
	for _, period := range []domain.Period{domain.PeriodPre, domain.PeriodPost} {
		archives, bands := r.req.Pre, r.params.PreBands()
		if period == domain.PeriodPost {
			archives, bands = r.req.Post, r.params.PostBands()
		}
		periodDir := filepath.Join(r.dir, string(period))

		var images domain.ExtractedBands
		if err := p.stage(r, StageExtract, func() error {
			var err error
			images, err = p.stages.Extractor.Extract(ctx, archives, bands, periodDir)
			return err
		}); err != nil {
			return err
		}
		for _, imgs := range images {
			p.metrics.ExtractedImages.Add(float64(len(imgs)))
		}

		if err := p.stage(r, StageClip, func() error {
			set, err := p.stages.Clipper.ClipMosaic(ctx, period, images, r.req.Boundary, r.dir)
			if err != nil {
				return err
			}
			if missing := missingBands(set, bands); len(missing) > 0 {
				return fmt.Errorf("%w: %s set lacks bands %s", domain.ErrClip, period, missing)
			}
			sets[period] = set
			return nil
		}); err != nil {
			return err
		}
	}
	r.pre, r.post = sets[domain.PeriodPre], sets[domain.PeriodPost]
	return nil
}

func (p *Pipeline) computeDifference(r *run) (*domain.Raster, error) {
	var preIdx, postIdx *domain.Raster
	err := p.stage(r, StageIndex, func() error {
		var err error
		if preIdx, err = p.index(r.pre, r.params, &r.reference); err != nil {
			return err
		}
		postIdx, err = p.index(r.post, r.params, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	var diff *domain.Raster
	err = p.stage(r, StageDifference, func() error {
		var err error
		if diff, err = domain.Difference(preIdx, postIdx); err != nil {
			return err
		}
		return p.writeRaster(filepath.Join(r.dir, "difference_unfiltered.tif"), diff)
	})
	return diff, err
}

// index computes the variant's normalized difference for one period. When
// numerator is non-nil it receives the numerator raster.
func (p *Pipeline) index(set domain.AlignedRasterSet, params domain.VariantParams, numerator **domain.Raster) (*domain.Raster, error) {
	a, err := p.readBand(set, params.Numerator)
	if err != nil {
		return nil, err
	}
	b, err := p.readBand(set, params.Denominator)
	if err != nil {
		return nil, err
	}
	if numerator != nil {
		*numerator = a
	}
	return domain.NormalizedDifference(a, b)
}

func (p *Pipeline) readBand(set domain.AlignedRasterSet, band domain.BandID) (*domain.Raster, error) {
	path, ok := set.Path(band)
	if !ok {
		return nil, fmt.Errorf("%w: %s raster missing from %s set", domain.ErrIndexComputation, band, set.Period())
	}
	raster, err := p.stages.Rasters.ReadRaster(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexComputation, err)
	}
	return raster, nil
}

func (p *Pipeline) filterAndReclassify(r *run, diff *domain.Raster) error {
	var filtered *domain.Raster
	if err := p.stage(r, StageFilter, func() error {
		var err error
		filtered, err = domain.MedianFilter(diff, domain.FilterSize)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrIndexComputation, err)
		}
		return nil
	}); err != nil {
		return err
	}

	return p.stage(r, StageReclassify, func() error {
		r.mask = domain.Reclassify(filtered, r.params.Threshold)
		r.result.BurnedPixels, r.result.BurnedAreaHa = domain.MaskSummary(r.mask)
		return p.writeRaster(maskPath(r), r.mask)
	})
}

func maskPath(r *run) string {
	return filepath.Join(r.dir, "burn_mask.tif")
}

func (p *Pipeline) vectorize(ctx context.Context, r *run) error {
	return p.stage(r, StageVectorize, func() error {
		dst := filepath.Join(p.dirs.Results, r.req.OutputName+".shp")
		n, err := p.stages.Vectorizer.Polygonize(ctx, maskPath(r), r.req.Boundary, dst)
		if err != nil {
			return err
		}
		r.result.VectorPath = dst
		r.result.Features = n
		return nil
	})
}

func (p *Pipeline) writeArtifacts(r *run) error {
	if err := p.stage(r, StageComposites, func() error {
		return p.writeComposites(r)
	}); err != nil {
		return err
	}

	return p.stage(r, StageProjection, func() error {
		path := filepath.Join(p.dirs.Results, r.req.OutputName+".prj")
		if err := p.stages.Vectorizer.WriteProjection(path, domain.TargetEPSG); err != nil {
			return err
		}
		r.result.ProjectionPath = path
		return nil
	})
}

// writeComposites stacks post-fire bands onto the reference grid.
func (p *Pipeline) writeComposites(r *run) error {
	cache := make(map[domain.BandID]*domain.Raster)
	for _, c := range domain.Composites {
		var bands [3]*domain.Raster
		for i, band := range c {
			if cached, ok := cache[band]; ok {
				bands[i] = cached
				continue
			}
			path, ok := r.post.Path(band)
			if !ok {
				return fmt.Errorf("%w: composite band %s missing", domain.ErrArtifactWrite, band)
			}
			raster, err := p.stages.Rasters.ReadRaster(path)
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
			}
			rows, cols := raster.Dims()
			refRows, refCols := r.reference.Dims()
			if rows != refRows || cols != refCols {
				return fmt.Errorf("%w: composite band %s is %dx%d, reference grid is %dx%d",
					domain.ErrArtifactWrite, band, rows, cols, refRows, refCols)
			}
			raster.Geo = r.reference.Geo
			cache[band] = raster
			bands[i] = raster
		}

		path := filepath.Join(p.dirs.Results, c.FileName(r.req.OutputName))
		if err := p.stages.Rasters.WriteComposite(path, bands); err != nil {
			return err
		}
		r.result.Composites = append(r.result.Composites, path)
	}
	return nil
}

func (p *Pipeline) writeRaster(path string, raster *domain.Raster) error {
	if err := p.stages.Rasters.WriteRaster(path, raster); err != nil {
		if errors.Is(err, domain.ErrArtifactWrite) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
	}
	return nil
}

// stage times fn, records its duration, and wraps a failure in a RunError.
func (p *Pipeline) stage(r *run, s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(string(s)).Observe(elapsed.Seconds())
	if err != nil {
		return &RunError{Stage: s, Err: err}
	}
	r.logger.Info("stage complete", "stage", s, "duration", elapsed)
	return nil
}

func (p *Pipeline) progress(ctx context.Context, r *run, percent int, message string) {
	r.record.Progress = percent
	r.record.Message = message
	r.sink.Progress(percent, message)
	if p.recorder != nil {
		if err := p.recorder.UpdateProgress(ctx, r.record.ID, percent, message); err != nil {
			r.logger.Warn("record progress failed", "percent", percent, "error", err)
		}
	}
}

// finish records the outcome, updates metrics, and publishes the event.
func (p *Pipeline) finish(ctx context.Context, r *run, err error, elapsed time.Duration) {
	r.record.FinishedAt = domain.Now()
	outcome := string(domain.RunSucceeded)
	if err != nil {
		outcome = string(domain.RunFailed)
		r.record.Status = domain.RunFailed
		r.record.Error = err.Error()
		r.logger.Error("analysis failed", "error", err, "duration", elapsed)
	} else {
		r.record.Status = domain.RunSucceeded
		r.record.VectorPath = r.result.VectorPath
		r.record.Features = r.result.Features
		r.record.BurnedPixels = r.result.BurnedPixels
		r.record.BurnedAreaHa = r.result.BurnedAreaHa
		p.metrics.BurnedAreaHectares.Observe(r.result.BurnedAreaHa)
		r.logger.Info("analysis complete",
			"vector", r.result.VectorPath,
			"features", r.result.Features,
			"burned_ha", r.result.BurnedAreaHa,
			"duration", elapsed,
		)
	}
	p.metrics.RunsTotal.WithLabelValues(string(r.req.Variant), outcome).Inc()
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	if p.recorder != nil {
		if err := p.recorder.FinishRun(ctx, r.record); err != nil {
			r.logger.Warn("record run finish failed", "error", err)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, r.record); err != nil {
			r.logger.Warn("publish completion event failed", "error", err)
		}
	}
}

func missingBands(set domain.AlignedRasterSet, want domain.BandSet) domain.BandSet {
	var missing domain.BandSet
	for _, b := range want {
		if _, ok := set.Path(b); !ok {
			missing = append(missing, b)
		}
	}
	return missing
}
