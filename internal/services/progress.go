package services

import "sync"

// FileState is the per-file position in the ingestion state machine.
type FileState int

const (
	StatePending FileState = iota
	StateUploading
	StateExtracting
	StateIndexing
	StateReady
	StateSkipped
	StateFailed
)

func (s FileState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUploading:
		return "uploading"
	case StateExtracting:
		return "extracting"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions happen for the file.
func (s FileState) Terminal() bool {
	return s == StateReady || s == StateSkipped || s == StateFailed
}

// UploadProgress is one progress report of an ingestion run.
type UploadProgress struct {
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
	File    string  `json:"file,omitempty"`
	State   string  `json:"state,omitempty"`
}

type ProgressFunc func(UploadProgress)

// overallPercent maps a file's position and stage to a run-wide percentage.
// Each file owns an equal share; extracting adds 20% of that share and
// indexing adds 50%.
func overallPercent(index, total int, state FileState) float64 {
	if total <= 0 {
		return 0
	}
	base := float64(index) / float64(total) * 100
	share := 100 / float64(total)
	switch state {
	case StateExtracting:
		return base + share*0.2
	case StateIndexing:
		return base + share*0.5
	default:
		return base
	}
}

// ProgressTracker forwards reports while keeping percentages non-decreasing
// and below 100 until Finish.
type ProgressTracker struct {
	mu       sync.Mutex
	fn       ProgressFunc
	last     float64
	finished bool
}

func NewProgressTracker(fn ProgressFunc) *ProgressTracker {
	return &ProgressTracker{fn: fn}
}

func (t *ProgressTracker) Report(msg, file string, state FileState, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	if percent < t.last {
		percent = t.last
	}
	if percent >= 100 {
		percent = t.last
	}
	t.last = percent
	t.emit(UploadProgress{Message: msg, Percent: percent, File: file, State: state.String()})
}

// Finish emits the single 100% report.
func (t *ProgressTracker) Finish(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	t.last = 100
	t.emit(UploadProgress{Message: msg, Percent: 100})
}

func (t *ProgressTracker) emit(p UploadProgress) {
	if t.fn != nil {
		t.fn(p)
	}
}
