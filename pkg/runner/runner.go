// Package runner evaluates the expressions of a batch concurrently.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/astatarinov/calc/pkg/batch"
	"github.com/astatarinov/calc/pkg/expr"
	"github.com/astatarinov/calc/pkg/types"
)

// DefaultWorkers is used when a runner is created with a non-positive worker
// count.
const DefaultWorkers = 4

// Outcome is the result of evaluating one batch entry.
type Outcome struct {
	Entry   *batch.Entry
	Postfix string
	Result  types.Number
	Err     error
	// Skipped is set for entries that never started because the run stopped.
	Skipped bool
	// Mismatch is set when the result differs from the entry's expectation.
	Mismatch bool
}

// Passed reports whether the entry evaluated and matched its expectation.
func (o *Outcome) Passed() bool {
	return !o.Skipped && o.Err == nil && !o.Mismatch
}

// Summary counts outcomes by category.
type Summary struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Mismatched int `json:"mismatched"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d total, %d passed, %d failed, %d mismatched, %d skipped",
		s.Total, s.Passed, s.Failed, s.Mismatched, s.Skipped)
}

// Report is the result of a batch run. Outcomes are in entry order.
type Report struct {
	Outcomes []*Outcome
	// Fatal is the error that stopped the run, if any.
	Fatal error
}

// Summary counts the report's outcomes.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case o.Err != nil:
			s.Failed++
		case o.Mismatch:
			s.Mismatched++
		default:
			s.Passed++
		}
	}
	return s
}

// Runner evaluates batches with a bounded number of workers.
type Runner struct {
	workers     int
	stopOnFatal bool
}

// New creates a runner. stopOnFatal is the default for batches that do not
// set it themselves.
func New(workers int, stopOnFatal bool) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{workers: workers, stopOnFatal: stopOnFatal}
}

// Workers returns the concurrency limit.
func (r *Runner) Workers() int { return r.workers }

// Run evaluates every entry of b. Entries start in order. When the run stops
// on a fatal error, or ctx is cancelled, entries that have not started are
// marked skipped. Run returns ctx.Err() after a cancellation; a fatal stop is
// reported in Report.Fatal instead.
func (r *Runner) Run(ctx context.Context, b *batch.Batch) (*Report, error) {
	stopOnFatal := r.stopOnFatal
	if b.StopOnFatal != nil {
		stopOnFatal = *b.StopOnFatal
	}

	outcomes := make([]*Outcome, len(b.Entries))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var fatal error

	for i, entry := range b.Entries {
		if !acquire(runCtx, sem) {
			outcomes[i] = &Outcome{Entry: entry, Skipped: true}
			continue
		}

		wg.Add(1)
		go func(idx int, e *batch.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			o := evaluate(e)
			outcomes[idx] = o

			if stopOnFatal && types.IsFatal(o.Err) {
				mu.Lock()
				if fatal == nil {
					fatal = o.Err
					cancel()
				}
				mu.Unlock()
			}
		}(i, entry)
	}

	wg.Wait()

	report := &Report{Outcomes: outcomes, Fatal: fatal}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// acquire takes a worker slot unless ctx is done first.
func acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	// Both cases may be ready at once; a done context always wins.
	if ctx.Err() != nil {
		<-sem
		return false
	}
	return true
}

func evaluate(e *batch.Entry) *Outcome {
	o := &Outcome{Entry: e}

	prog, err := expr.Compile(e.Expr)
	if err != nil {
		o.Err = err
		return o
	}
	o.Postfix = prog.String()

	result, err := prog.Eval()
	if err != nil {
		o.Err = err
		return o
	}
	o.Result = result
	if e.Expect != nil && !e.Expect.Equal(result) {
		o.Mismatch = true
	}
	return o
}
