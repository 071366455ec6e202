package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

// State is the lifecycle position of one upload-and-score cycle.
type State string

const (
	StateIdle       State = "idle"
	StatePreviewing State = "previewing"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a cycle.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Defaults applied by the upload widget.
const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultPreviewOrigin  = "tasteai://local"
)

// DefaultAllowedTypes are the image types the scoring service decodes.
var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// ErrSuperseded is returned by Select when a newer selection replaced this
// one before its result arrived. The result is dropped.
var ErrSuperseded = errors.New("scoring superseded by a newer selection")

// Snapshot is a read-only view of the workflow.
type Snapshot struct {
	State      State
	Seq        uint64
	InFlight   bool
	File       string
	PreviewURL string
	Result     *domain.ScoringResult
	Kind       domain.ErrorKind
	Message    string
	Err        error
}

// WorkflowOptions tune selection filtering.
type WorkflowOptions struct {
	MaxBytes      int64
	AllowedTypes  []string
	PreviewOrigin string
}

// ScoringWorkflow drives Idle -> Previewing -> Submitting -> Success|Failed.
// Each submission carries a sequence number and only the latest one may
// resolve the workflow.
type ScoringWorkflow struct {
	scorer ports.Scorer
	opts   WorkflowOptions
	logger *slog.Logger

	mu        sync.Mutex
	snap      Snapshot
	seq       uint64
	previews  map[string]struct{}
	observers []func(Snapshot)

	// pending holds snapshots not yet handed to observers; delivering marks
	// that some caller is draining it, so notifications keep apply order.
	pending    []Snapshot
	delivering bool
}

// NewScoringWorkflow builds an idle workflow over scorer.
func NewScoringWorkflow(scorer ports.Scorer, opts WorkflowOptions, log *slog.Logger) *ScoringWorkflow {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxUploadBytes
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = DefaultAllowedTypes
	}
	if opts.PreviewOrigin == "" {
		opts.PreviewOrigin = DefaultPreviewOrigin
	}
	return &ScoringWorkflow{
		scorer:   scorer,
		opts:     opts,
		logger:   log,
		snap:     Snapshot{State: StateIdle},
		previews: make(map[string]struct{}),
	}
}

// Subscribe registers fn for every later transition. fn runs outside the
// workflow lock and may call Snapshot, Reset or Close; transitions it causes
// are delivered after it returns. fn must not call Select, which blocks on
// the scorer.
func (w *ScoringWorkflow) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Snapshot returns the current view.
func (w *ScoringWorkflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// LivePreviews reports how many preview URLs have not been released.
func (w *ScoringWorkflow) LivePreviews() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.previews)
}

// Select starts a cycle with the first acceptable file and blocks until the
// scorer answers. Selecting nothing is a no-op. A selection in which no file
// passes the type and size rules leaves the state untouched and returns a
// validation error. A selection during Submitting is accepted; the older
// submission then resolves with ErrSuperseded.
func (w *ScoringWorkflow) Select(ctx context.Context, files []domain.ImageFile) error {
	if len(files) == 0 {
		return nil
	}

	file, err := w.pick(files)
	if err != nil {
		w.debug("selection rejected", "error", err)
		return err
	}

	preview := fmt.Sprintf("blob:%s/%s", w.opts.PreviewOrigin, uuid.NewString())

	var seq uint64
	w.apply(func(s *Snapshot) bool {
		w.seq++
		seq = w.seq
		w.releaseLocked(s.PreviewURL)
		w.previews[preview] = struct{}{}
		*s = Snapshot{State: StatePreviewing, Seq: seq, File: file.Name, PreviewURL: preview}
		return true
	})
	w.apply(func(s *Snapshot) bool {
		if s.Seq != seq {
			return false
		}
		s.State = StateSubmitting
		s.InFlight = true
		return true
	})

	result, scoreErr := w.scorer.ScoreImage(ctx, file)

	stale := false
	w.apply(func(s *Snapshot) bool {
		if seq != w.seq {
			stale = true
			return false
		}
		s.InFlight = false
		if scoreErr != nil {
			s.State = StateFailed
			s.Kind = domain.KindOf(scoreErr)
			s.Message = FailureMessage(scoreErr)
			s.Err = scoreErr
			return true
		}
		r := result
		s.State = StateSuccess
		s.Result = &r
		return true
	})

	if stale {
		w.debug("stale scoring result dropped", "seq", seq, "file", file.Name, "error", scoreErr)
		return ErrSuperseded
	}
	if scoreErr != nil {
		w.debug("scoring failed", "seq", seq, "kind", domain.KindOf(scoreErr), "error", scoreErr)
		return scoreErr
	}
	return nil
}

// Reset returns to Idle. A submission still in flight becomes stale.
func (w *ScoringWorkflow) Reset() {
	w.apply(func(s *Snapshot) bool {
		w.seq++
		w.releaseLocked(s.PreviewURL)
		*s = Snapshot{State: StateIdle, Seq: w.seq}
		return true
	})
}

// Close releases every preview and resets the workflow.
func (w *ScoringWorkflow) Close() {
	w.Reset()
	w.mu.Lock()
	clear(w.previews)
	w.mu.Unlock()
}

// apply runs mutate under the state lock and, when it reports a change,
// queues the new snapshot for observers. The first caller to find the queue
// idle drains it; nested or concurrent transitions join the same queue.
func (w *ScoringWorkflow) apply(mutate func(*Snapshot) bool) {
	w.mu.Lock()
	if !mutate(&w.snap) {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, w.snap)
	if w.delivering {
		w.mu.Unlock()
		return
	}

	w.delivering = true
	for len(w.pending) > 0 {
		next := w.pending[0]
		w.pending = w.pending[1:]
		observers := slices.Clone(w.observers)
		w.mu.Unlock()

		for _, fn := range observers {
			fn(next)
		}

		w.mu.Lock()
	}
	w.delivering = false
	w.mu.Unlock()
}

func (w *ScoringWorkflow) releaseLocked(url string) {
	if url != "" {
		delete(w.previews, url)
	}
}

// pick returns the first file the upload rules accept.
func (w *ScoringWorkflow) pick(files []domain.ImageFile) (domain.ImageFile, error) {
	reasons := make([]string, 0, len(files))
	for _, f := range files {
		reason := w.reject(f)
		if reason == "" {
			return f, nil
		}
		reasons = append(reasons, reason)
	}
	return domain.ImageFile{}, &domain.ValidationError{Field: "file", Reason: strings.Join(reasons, "; ")}
}

func (w *ScoringWorkflow) reject(f domain.ImageFile) string {
	name := f.Name
	if name == "" {
		name = "file"
	}
	switch {
	case f.Size() == 0:
		return name + " is empty"
	case f.Size() > w.opts.MaxBytes:
		return fmt.Sprintf("%s is %s, limit is %s", name,
			humanize.IBytes(uint64(f.Size())), humanize.IBytes(uint64(w.opts.MaxBytes)))
	case !slices.Contains(w.opts.AllowedTypes, f.MediaType()):
		return fmt.Sprintf("%s has unsupported type %q", name, f.MediaType())
	}
	return ""
}

// statusError is satisfied by transport failures that carry an HTTP answer.
type statusError interface {
	StatusCode() int
	DisplayMessage() string
}

// FailureMessage renders err for display while the Snapshot keeps its kind.
func FailureMessage(err error) string {
	var se statusError
	var ve *domain.ValidationError

	if errors.Is(err, context.Canceled) {
		return "Scoring was canceled."
	}

	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		return "Your session has expired. Please log in again."
	case domain.KindTimeout:
		return "The scoring service did not respond in time. Please try again."
	case domain.KindNetwork:
		return "Could not reach the scoring service. Check your connection."
	case domain.KindHTTP:
		if !errors.As(err, &se) {
			return "Scoring failed."
		}
		if msg := se.DisplayMessage(); msg != "" {
			return "Scoring failed: " + msg
		}
		return fmt.Sprintf("Scoring failed with status %d.", se.StatusCode())
	case domain.KindValidation:
		if errors.As(err, &ve) {
			return "Invalid image: " + ve.Reason
		}
		return "Invalid image."
	default:
		return "Scoring failed: " + err.Error()
	}
}

func (w *ScoringWorkflow) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
