package suvr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"centiloid/internal/models"
)

// VolumeSource loads a subject volume from a path.
type VolumeSource interface {
	Load(path string) (*models.Volume, error)
}

// Subject is one entry of a batch. When Volume is nil it is loaded from Path
// through the runner's VolumeSource.
type Subject struct {
	ID     string
	Path   string
	Volume *models.Volume
}

// BatchResult is the outcome of a batch run. Records holds every successful
// subject and Failures every failed one, both in input order. Each input
// subject appears in exactly one of the two.
type BatchResult struct {
	Records  []models.SUVRRecord
	Failures []*SubjectError
}

// Err joins all per-subject failures, or returns nil if there were none.
func (r *BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// BatchRunner applies a Calculator to an ordered list of subjects.
//
// Failure policy: the runner never aborts on a single subject. Load and
// compute failures are collected per subject and returned next to the
// successful records; the caller decides whether a partial batch is usable.
type BatchRunner struct {
	calc    *Calculator
	source  VolumeSource
	workers int
}

// NewBatchRunner creates a runner. source may be nil when every subject
// carries its volume. workers <= 0 uses all available CPUs.
func NewBatchRunner(calc *Calculator, source VolumeSource, workers int) *BatchRunner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchRunner{
		calc:    calc,
		source:  source,
		workers: workers,
	}
}

// Run computes SUVR records for subjects concurrently and reassembles them
// in input order. Cancelling ctx stops dispatching new subjects; subjects
// that were never processed fail with the context error.
func (b *BatchRunner) Run(ctx context.Context, subjects []Subject) *BatchResult {
	type processingResult struct {
		index  int
		record models.SUVRRecord
		err    error
	}

	jobs := make(chan int)
	resultChan := make(chan processingResult)

	workers := b.workers
	if workers > len(subjects) {
		workers = len(subjects)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					resultChan <- processingResult{index: idx, err: err}
					continue
				}
				rec, err := b.process(subjects[idx])
				resultChan <- processingResult{index: idx, record: rec, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range subjects {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	records := make([]models.SUVRRecord, len(subjects))
	errs := make([]error, len(subjects))
	received := make([]bool, len(subjects))
	for res := range resultChan {
		records[res.index] = res.record
		errs[res.index] = res.err
		received[res.index] = true
	}

	result := &BatchResult{Records: make([]models.SUVRRecord, 0, len(subjects))}
	for i, s := range subjects {
		err := errs[i]
		if !received[i] {
			err = ctx.Err()
			if err == nil {
				err = context.Canceled
			}
		}
		if err != nil {
			result.Failures = append(result.Failures, &SubjectError{SubjectID: s.ID, Index: i, Err: err})
			continue
		}
		result.Records = append(result.Records, records[i])
	}
	return result
}

func (b *BatchRunner) process(s Subject) (models.SUVRRecord, error) {
	vol := s.Volume
	if vol == nil {
		if b.source == nil || s.Path == "" {
			return models.SUVRRecord{}, ErrNoVolume
		}
		loaded, err := b.source.Load(s.Path)
		if err != nil {
			return models.SUVRRecord{}, fmt.Errorf("load %s: %w", s.Path, err)
		}
		vol = loaded
	}
	return b.calc.Compute(s.ID, vol)
}
