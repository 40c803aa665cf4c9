// Package service ties the calculator core, the batch runner and the store
// together. The REST, gRPC and web front ends all call into it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/astatarinov/calc/pkg/batch"
	"github.com/astatarinov/calc/pkg/expr"
	"github.com/astatarinov/calc/pkg/runner"
	"github.com/astatarinov/calc/pkg/store"
	"github.com/astatarinov/calc/pkg/types"
)

// ErrInvalidBatchID is wrapped when a batch ID does not match ValidBatchID.
var ErrInvalidBatchID = errors.New("invalid batch ID")

// ValidBatchID matches accepted batch IDs.
var ValidBatchID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// MaxBatchIDLength is the longest accepted batch ID.
const MaxBatchIDLength = 128

// BatchRun is the recorded result of running a stored batch.
type BatchRun struct {
	Batch       string                 `json:"batch"`
	Summary     runner.Summary         `json:"summary"`
	Evaluations []*store.Evaluation    `json:"evaluations"`
	Skipped     []string               `json:"skipped,omitempty"`
	Mismatched  []string               `json:"mismatched,omitempty"`
	Fatal       *store.EvaluationError `json:"fatal,omitempty"`
}

// Service evaluates expressions and batches and records the results.
type Service struct {
	store  *store.Store
	runner *runner.Runner

	mu      sync.RWMutex
	parsed  map[string]*batch.Batch // cached parsed batches by name
	runs    map[string]*sync.Mutex  // serializes runs per batch name
	sources map[string]string       // batch ID -> file it was loaded from
}

// New creates a service over s that runs batches with r.
func New(s *store.Store, r *runner.Runner) *Service {
	return &Service{
		store:   s,
		runner:  r,
		parsed:  make(map[string]*batch.Batch),
		runs:    make(map[string]*sync.Mutex),
		sources: make(map[string]string),
	}
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Evaluate evaluates a single expression and records the outcome. A failed
// evaluation is recorded too; the calculator error is returned alongside the
// record so that callers can report its details.
func (s *Service) Evaluate(expression string) (*store.Evaluation, error) {
	prog, err := expr.Compile(expression)
	if err != nil {
		return s.store.RecordEvaluation("", "", expression, "", types.Number{}, err), err
	}
	result, err := prog.Eval()
	return s.store.RecordEvaluation("", "", expression, prog.String(), result, err), err
}

// CreateBatch validates and stores a new batch.
func (s *Service) CreateBatch(batchID, source, description string) (*store.Batch, error) {
	if !ValidBatchID.MatchString(batchID) || len(batchID) > MaxBatchIDLength {
		return nil, fmt.Errorf("%w %q", ErrInvalidBatchID, batchID)
	}
	parsed, err := batch.Parse([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("invalid batch definition: %w", err)
	}
	if description == "" {
		description = parsed.Description
	}

	b, err := s.store.CreateBatch(batchID, source, description)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.parsed[b.Name] = parsed
	s.mu.Unlock()
	return b, nil
}

// UpdateBatch replaces a stored batch's source and, when non-empty, its
// description. An empty source only updates the description.
func (s *Service) UpdateBatch(name, source, description string) (*store.Batch, error) {
	current, err := s.store.GetBatch(name)
	if err != nil {
		return nil, err
	}

	var parsed *batch.Batch
	if source == "" {
		source = current.SourceCode
	} else {
		parsed, err = batch.Parse([]byte(source))
		if err != nil {
			return nil, fmt.Errorf("invalid batch definition: %w", err)
		}
	}

	b, err := s.store.UpdateBatch(name, source, description)
	if err != nil {
		return nil, err
	}
	if parsed != nil {
		s.mu.Lock()
		s.parsed[name] = parsed
		s.mu.Unlock()
	}
	return b, nil
}

// DeleteBatch removes a batch and its recorded evaluations.
func (s *Service) DeleteBatch(name string) error {
	if err := s.store.DeleteBatch(name); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.parsed, name)
	delete(s.sources, strings.TrimPrefix(name, "batches/"))
	s.mu.Unlock()
	return nil
}

// RunBatch runs a stored batch. Evaluations from the batch's previous run are
// replaced by the new ones; skipped entries are not recorded. Runs of the
// same batch do not overlap.
func (s *Service) RunBatch(ctx context.Context, name string) (*BatchRun, error) {
	mu := s.runLock(name)
	mu.Lock()
	defer mu.Unlock()

	parsed, err := s.parsedBatch(name)
	if err != nil {
		return nil, err
	}

	report, err := s.runner.Run(ctx, parsed)
	if err != nil {
		return nil, err
	}

	s.store.DeleteEvaluations(name)
	run := &BatchRun{Batch: name, Summary: report.Summary()}
	for _, o := range report.Outcomes {
		if o.Skipped {
			run.Skipped = append(run.Skipped, o.Entry.Name)
			continue
		}
		if o.Mismatch {
			run.Mismatched = append(run.Mismatched, o.Entry.Name)
		}
		ev := s.store.RecordEvaluation(name, o.Entry.Name, o.Entry.Expr, o.Postfix, o.Result, o.Err)
		run.Evaluations = append(run.Evaluations, ev)
	}
	if report.Fatal != nil {
		run.Fatal = store.NewEvaluationError(report.Fatal)
	}
	return run, nil
}

func (s *Service) runLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.runs[name]
	if !ok {
		mu = &sync.Mutex{}
		s.runs[name] = mu
	}
	return mu
}

func (s *Service) parsedBatch(name string) (*batch.Batch, error) {
	s.mu.RLock()
	parsed, ok := s.parsed[name]
	s.mu.RUnlock()
	if ok {
		return parsed, nil
	}

	// Try to parse from stored source
	b, err := s.store.GetBatch(name)
	if err != nil {
		return nil, err
	}
	parsed, err = batch.Parse([]byte(b.SourceCode))
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}

	s.mu.Lock()
	s.parsed[name] = parsed
	s.mu.Unlock()
	return parsed, nil
}

// LoadDir loads all .yaml, .yml and .json batch files from dir. The file name
// (sans extension, lowercased) becomes the batch ID. Files that fail to load
// are logged and skipped; a file whose batch already exists replaces it. When
// two files map to the same ID, the first one loaded keeps it.
func (s *Service) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading batches directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isBatchFile(entry.Name()) {
			continue
		}
		if err := s.loadFile(dir, entry.Name()); err != nil {
			log.Printf("Warning: could not load %q: %v", entry.Name(), err)
			continue
		}
		loaded++
	}

	log.Printf("Loaded %d batch(es) from %s", loaded, dir)
	return loaded, nil
}

func isBatchFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func batchFileID(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// loadFile creates or replaces the batch stored from dir/name.
func (s *Service) loadFile(dir, name string) error {
	batchID := batchFileID(name)
	if base := strings.TrimSuffix(name, filepath.Ext(name)); batchID != base {
		log.Printf("Warning: lowercased batch ID %q (from file %q)", batchID, name)
	}

	s.mu.RLock()
	owner, owned := s.sources[batchID]
	s.mu.RUnlock()
	if owned && owner != name {
		return fmt.Errorf("batch %q is already loaded from %s", batchID, owner)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.New("empty batch file")
	}

	if _, err := s.store.GetBatch(store.BatchName(batchID)); err == nil {
		if _, err := s.UpdateBatch(store.BatchName(batchID), string(data), ""); err != nil {
			return err
		}
		s.setSource(batchID, name)
		log.Printf("Reloaded batch %q from %s", batchID, name)
		return nil
	}

	if _, err := s.CreateBatch(batchID, string(data), ""); err != nil {
		return err
	}
	s.setSource(batchID, name)
	log.Printf("Loaded batch %q from %s", batchID, name)
	return nil
}

func (s *Service) setSource(batchID, name string) {
	s.mu.Lock()
	s.sources[batchID] = name
	s.mu.Unlock()
}

// sourceOf returns the file the batch was loaded from, if any.
func (s *Service) sourceOf(batchID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.sources[batchID]
	return name, ok
}
