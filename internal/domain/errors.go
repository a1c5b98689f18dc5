package domain

import "errors"

// Error kinds surfaced by the pipeline. Adapters wrap library failures with
// the matching kind; match with errors.Is.
var (
	ErrBandNotFound     = errors.New("band not found")
	ErrExtraction       = errors.New("extraction error")
	ErrClip             = errors.New("clip error")
	ErrIndexComputation = errors.New("index computation error")
	ErrVectorization    = errors.New("vectorization error")
	ErrArtifactWrite    = errors.New("artifact write error")
)

// ErrNotFound is returned by ledgers when a run or archive is unknown.
var ErrNotFound = errors.New("not found")
