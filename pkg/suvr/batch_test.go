package suvr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"centiloid/internal/models"
)

// mapSource serves volumes from memory keyed by path
type mapSource map[string]*models.Volume

func (m mapSource) Load(path string) (*models.Volume, error) {
	vol, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such volume: %s", path)
	}
	return vol, nil
}

// subjectVolume returns a scenario-shaped volume whose SUVR equals suvr
func subjectVolume(suvr float64) *models.Volume {
	vol := models.NewVolume(2, 1, 2)
	vol.Set(0, 0, 0, suvr)
	vol.Set(0, 0, 1, suvr)
	vol.Set(1, 0, 0, 1)
	return vol
}

func newScenarioCalculator(t *testing.T) *Calculator {
	t.Helper()
	_, roi, ref := scenarioVolumes()
	calc, err := NewCalculator(roi, ref, Options{})
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	return calc
}

// TestBatchRunPreservesOrder runs many subjects on several workers and checks
// that records come back in input order
func TestBatchRunPreservesOrder(t *testing.T) {
	calc := newScenarioCalculator(t)

	n := 50
	subjects := make([]Subject, n)
	for i := 0; i < n; i++ {
		subjects[i] = Subject{
			ID:     fmt.Sprintf("sub-%02d", i),
			Volume: subjectVolume(1 + float64(i)/10),
		}
	}

	result := NewBatchRunner(calc, nil, 4).Run(context.Background(), subjects)
	if err := result.Err(); err != nil {
		t.Fatalf("Unexpected failures: %v", err)
	}
	if len(result.Records) != n {
		t.Fatalf("Expected %d records, got %d", n, len(result.Records))
	}

	for i, rec := range result.Records {
		if rec.SubjectID != subjects[i].ID {
			t.Errorf("Record %d: expected subject %s, got %s", i, subjects[i].ID, rec.SubjectID)
		}
		want := 1 + float64(i)/10
		if rec.SUVR != want {
			t.Errorf("Record %d: expected SUVR %f, got %f", i, want, rec.SUVR)
		}
	}
}

// TestBatchRunCollectsFailures mixes good subjects with load, shape and
// zero-reference failures and checks that all of them are accounted for
func TestBatchRunCollectsFailures(t *testing.T) {
	calc := newScenarioCalculator(t)

	zeroRef := subjectVolume(2)
	zeroRef.Set(1, 0, 0, 0)

	source := mapSource{
		"/data/a.nii": subjectVolume(1.2),
		"/data/c.nii": subjectVolume(1.4),
	}

	subjects := []Subject{
		{ID: "a", Path: "/data/a.nii"},
		{ID: "b", Path: "/data/missing.nii"},
		{ID: "c", Path: "/data/c.nii"},
		{ID: "d", Volume: models.NewVolume(3, 3, 3)},
		{ID: "e", Volume: zeroRef},
		{ID: "f", Volume: subjectVolume(1.6)},
		{ID: "g"},
	}

	result := NewBatchRunner(calc, source, 3).Run(context.Background(), subjects)

	if len(result.Records)+len(result.Failures) != len(subjects) {
		t.Fatalf("Expected %d outcomes, got %d records and %d failures",
			len(subjects), len(result.Records), len(result.Failures))
	}

	wantIDs := []string{"a", "c", "f"}
	for i, rec := range result.Records {
		if rec.SubjectID != wantIDs[i] {
			t.Errorf("Record %d: expected %s, got %s", i, wantIDs[i], rec.SubjectID)
		}
	}

	wantFailures := []struct {
		id    string
		index int
		err   error
	}{
		{"b", 1, nil},
		{"d", 3, ErrShapeMismatch},
		{"e", 4, ErrDivisionByZero},
		{"g", 6, ErrNoVolume},
	}
	if len(result.Failures) != len(wantFailures) {
		t.Fatalf("Expected %d failures, got %d: %v", len(wantFailures), len(result.Failures), result.Err())
	}
	for i, want := range wantFailures {
		got := result.Failures[i]
		if got.SubjectID != want.id || got.Index != want.index {
			t.Errorf("Failure %d: expected %s/#%d, got %s/#%d", i, want.id, want.index, got.SubjectID, got.Index)
		}
		if want.err != nil && !errors.Is(got, want.err) {
			t.Errorf("Failure %d: expected %v, got %v", i, want.err, got.Err)
		}
	}

	var subjErr *SubjectError
	if !errors.As(result.Err(), &subjErr) {
		t.Errorf("Expected joined error to contain a SubjectError")
	}
}

// TestBatchRunCancelled verifies that a cancelled context fails every
// unprocessed subject instead of dropping it
func TestBatchRunCancelled(t *testing.T) {
	calc := newScenarioCalculator(t)

	subjects := make([]Subject, 10)
	for i := range subjects {
		subjects[i] = Subject{ID: fmt.Sprintf("s%d", i), Volume: subjectVolume(1.5)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewBatchRunner(calc, nil, 2).Run(ctx, subjects)
	if len(result.Records)+len(result.Failures) != len(subjects) {
		t.Fatalf("Expected %d outcomes, got %d", len(subjects), len(result.Records)+len(result.Failures))
	}
	for _, f := range result.Failures {
		if !errors.Is(f, context.Canceled) {
			t.Errorf("Expected context.Canceled for %s, got %v", f.SubjectID, f.Err)
		}
	}
}

func TestBatchRunEmpty(t *testing.T) {
	result := NewBatchRunner(newScenarioCalculator(t), nil, 0).Run(context.Background(), nil)
	if len(result.Records) != 0 || len(result.Failures) != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if result.Err() != nil {
		t.Errorf("Expected nil error, got %v", result.Err())
	}
}
