// Package store provides in-memory storage for batches and evaluations.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/astatarinov/calc/pkg/types"
)

var (
	// ErrNotFound is wrapped by lookups of unknown names.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is wrapped when creating a batch whose name is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// EvaluationState represents the outcome of an evaluation.
type EvaluationState string

const (
	EvaluationSucceeded EvaluationState = "SUCCEEDED"
	EvaluationFailed    EvaluationState = "FAILED"
)

// Batch represents a stored batch definition.
type Batch struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RevisionID  string    `json:"revisionId"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
	SourceCode  string    `json:"sourceContents"`
}

// Evaluation represents one recorded evaluation of an expression.
type Evaluation struct {
	Name       string           `json:"name"`
	Expression string           `json:"expression"`
	Postfix    string           `json:"postfix,omitempty"`
	State      EvaluationState  `json:"state"`
	Result     *types.Number    `json:"result,omitempty"`
	ResultType string           `json:"resultType,omitempty"`
	Error      *EvaluationError `json:"error,omitempty"`
	Batch      string           `json:"batch,omitempty"`
	Entry      string           `json:"entry,omitempty"`
	CreateTime time.Time        `json:"createTime"`
}

// EvaluationError describes why an evaluation failed. Symbol, Operator and
// Position are set when the calculator error carries them.
type EvaluationError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Fatal    bool   `json:"fatal"`
	Symbol   string `json:"symbol,omitempty"`
	Operator string `json:"operator,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Store is a thread-safe in-memory storage for batches and evaluations.
type Store struct {
	mu          sync.RWMutex
	batches     map[string]*Batch
	evaluations map[string]*Evaluation
	order       []string

	// Counters for generating unique IDs
	evalCounter int64
	revCounter  int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		batches:     make(map[string]*Batch),
		evaluations: make(map[string]*Evaluation),
	}
}

// BatchName returns the resource name for a batch ID.
func BatchName(batchID string) string {
	return "batches/" + batchID
}

// EvaluationName returns the resource name for an evaluation ID.
func EvaluationName(evalID string) string {
	return "evaluations/" + evalID
}

// CreateBatch stores a new batch definition.
func (s *Store) CreateBatch(batchID, sourceCode, description string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := BatchName(batchID)
	if _, exists := s.batches[name]; exists {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrAlreadyExists)
	}

	s.revCounter++
	now := time.Now()
	b := &Batch{
		Name:        name,
		Description: description,
		RevisionID:  fmt.Sprintf("%06d-000", s.revCounter),
		CreateTime:  now,
		UpdateTime:  now,
		SourceCode:  sourceCode,
	}
	s.batches[name] = b
	return copyBatch(b), nil
}

// GetBatch retrieves a batch by its full name.
func (s *Store) GetBatch(name string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[name]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}
	return copyBatch(b), nil
}

// ListBatches returns all batches sorted by name.
func (s *Store) ListBatches() []*Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Batch, 0, len(s.batches))
	for _, b := range s.batches {
		result = append(result, copyBatch(b))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// UpdateBatch replaces a batch's source. An empty description keeps the old one.
func (s *Store) UpdateBatch(name, sourceCode, description string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[name]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}

	s.revCounter++
	b.SourceCode = sourceCode
	if description != "" {
		b.Description = description
	}
	b.RevisionID = fmt.Sprintf("%06d-000", s.revCounter)
	b.UpdateTime = time.Now()

	return copyBatch(b), nil
}

// DeleteBatch removes a batch and the evaluations recorded for it.
func (s *Store) DeleteBatch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[name]; !ok {
		return fmt.Errorf("batch '%s' %w", name, ErrNotFound)
	}
	delete(s.batches, name)
	s.deleteEvaluationsLocked(name)
	return nil
}

// RecordEvaluation stores the outcome of evaluating expression. batch and
// entry are empty for ad-hoc evaluations. A nil err records a success.
func (s *Store) RecordEvaluation(batch, entry, expression, postfix string, result types.Number, err error) *Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evalCounter++
	ev := &Evaluation{
		Name:       EvaluationName(fmt.Sprintf("%d", s.evalCounter)),
		Expression: expression,
		Postfix:    postfix,
		Batch:      batch,
		Entry:      entry,
		CreateTime: time.Now(),
	}

	if err != nil {
		ev.State = EvaluationFailed
		ev.Error = NewEvaluationError(err)
	} else {
		ev.State = EvaluationSucceeded
		r := result
		ev.Result = &r
		ev.ResultType = result.Type().String()
	}

	s.evaluations[ev.Name] = ev
	s.order = append(s.order, ev.Name)
	return copyEvaluation(ev)
}

// NewEvaluationError converts err into its stored form.
func NewEvaluationError(err error) *EvaluationError {
	if ce, ok := types.AsCalcError(err); ok {
		stored := &EvaluationError{Kind: string(ce.Kind), Message: ce.Message, Fatal: ce.Fatal()}
		if data, jerr := json.Marshal(ce); jerr == nil {
			_ = json.Unmarshal(data, stored)
		}
		return stored
	}
	return &EvaluationError{Kind: "Internal", Message: err.Error()}
}

// GetEvaluation retrieves an evaluation by name.
func (s *Store) GetEvaluation(name string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.evaluations[name]
	if !ok {
		return nil, fmt.Errorf("evaluation '%s' %w", name, ErrNotFound)
	}
	return copyEvaluation(ev), nil
}

// ListEvaluations returns evaluations in creation order. An empty batch name
// returns every evaluation.
func (s *Store) ListEvaluations(batch string) []*Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Evaluation
	for _, name := range s.order {
		ev := s.evaluations[name]
		if batch == "" || ev.Batch == batch {
			result = append(result, copyEvaluation(ev))
		}
	}
	return result
}

// DeleteEvaluations removes the evaluations recorded for a batch and returns
// how many were removed.
func (s *Store) DeleteEvaluations(batch string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEvaluationsLocked(batch)
}

func (s *Store) deleteEvaluationsLocked(batch string) int {
	kept := s.order[:0]
	removed := 0
	for _, name := range s.order {
		if s.evaluations[name].Batch == batch {
			delete(s.evaluations, name)
			removed++
			continue
		}
		kept = append(kept, name)
	}
	s.order = kept
	return removed
}

func copyBatch(b *Batch) *Batch {
	c := *b
	return &c
}

func copyEvaluation(ev *Evaluation) *Evaluation {
	c := *ev
	if ev.Result != nil {
		r := *ev.Result
		c.Result = &r
	}
	if ev.Error != nil {
		e := *ev.Error
		c.Error = &e
	}
	return &c
}
