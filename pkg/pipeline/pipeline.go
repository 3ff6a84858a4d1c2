// Package pipeline runs a complete Centiloid calibration: it loads the masks,
// discovers and processes every cohort, derives the calibration from the two
// anchor cohorts, applies it to all subjects and optionally validates the
// results against a published reference table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"centiloid/internal/models"
	"centiloid/pkg/centiloid"
	"centiloid/pkg/niftiio"
	"centiloid/pkg/reference"
	"centiloid/pkg/suvr"
	"centiloid/pkg/validation"
)

// ErrAnchorCohorts is returned when the cohort list does not contain exactly
// one anchor_low and one anchor_high cohort.
var ErrAnchorCohorts = errors.New("pipeline: need exactly one low and one high anchor cohort")

// CohortSpec describes one cohort directory.
type CohortSpec struct {
	// Name labels the cohort in results
	Name string

	// Role is the cohort's part in the calibration
	Role models.Role

	// Dir is the directory holding the cohort's normalized PET images
	Dir string

	// Prefix selects files by the start of their name; empty means "w"
	Prefix string
}

// Params holds the calibration run parameters.
type Params struct {
	// ROIMask and RefMask are paths to the target-region and reference masks.
	ROIMask string
	RefMask string

	// Cohorts are discovered and processed in the listed order.
	Cohorts []CohortSpec

	// ReferenceTable is an optional path to published SUVR/CL values.
	// Reference rows are paired with computed values by position within each
	// anchor group.
	ReferenceTable string

	// NumCores bounds how many subjects are processed concurrently.
	NumCores int

	// NaNPolicy controls NaN handling inside masks.
	NaNPolicy suvr.NaNPolicy

	// Source loads masks and subject volumes. Nil uses niftiio.Loader.
	Source suvr.VolumeSource

	// Logger receives progress messages. Nil uses slog.Default().
	Logger *slog.Logger
}

// CohortResult is the outcome for one cohort.
type CohortResult struct {
	Cohort   models.Cohort
	Failures []*suvr.SubjectError

	// SUVRSummary and CentiloidSummary describe the successful subjects.
	// They are zero when every subject failed.
	SUVRSummary      validation.Summary
	CentiloidSummary validation.Summary
}

// Validation holds the fits of computed against reference values.
type Validation struct {
	SUVR models.ValidationResult
	CL   models.ValidationResult
}

// Result is the outcome of Process.
type Result struct {
	Model      centiloid.Model
	Cohorts    []CohortResult
	Records    []models.CentiloidRecord
	Validation *Validation

	// ValidationErr is set when a reference table was configured but the
	// comparison could not be made. It never affects Records.
	ValidationErr error

	Elapsed time.Duration
}

// Failures returns every per-subject failure across cohorts.
func (r *Result) Failures() []*suvr.SubjectError {
	var out []*suvr.SubjectError
	for _, c := range r.Cohorts {
		out = append(out, c.Failures...)
	}
	return out
}

// Pipeline runs one calibration.
type Pipeline struct {
	params *Params
	log    *slog.Logger
	source suvr.VolumeSource
}

// New creates a pipeline with the provided parameters.
func New(params *Params) *Pipeline {
	log := params.Logger
	if log == nil {
		log = slog.Default()
	}
	source := params.Source
	if source == nil {
		source = niftiio.Loader{}
	}
	return &Pipeline{
		params: params,
		log:    log,
		source: source,
	}
}

// Process runs the complete calibration.
//
// Mask problems, missing anchors and degenerate calibrations abort the run.
// Subject failures are collected on the result and processing continues.
// Validation problems are reported on Result.ValidationErr.
func (p *Pipeline) Process(ctx context.Context) (*Result, error) {
	start := time.Now()

	lowIdx, highIdx, err := anchorIndexes(p.params.Cohorts)
	if err != nil {
		return nil, err
	}

	// Step 1: load masks once for the whole run
	p.log.Info("loading masks", "roi", p.params.ROIMask, "reference", p.params.RefMask)
	calc, err := p.loadCalculator()
	if err != nil {
		return nil, err
	}
	p.log.Debug("masks ready",
		"roi_voxels", calc.ROI().Count(),
		"reference_voxels", calc.Reference().Count(),
		"nan_policy", p.params.NaNPolicy.String())

	// Step 2: SUVR for every cohort, in configured order
	runner := suvr.NewBatchRunner(calc, p.source, p.params.NumCores)
	result := &Result{Cohorts: make([]CohortResult, len(p.params.Cohorts))}
	for i, spec := range p.params.Cohorts {
		cr, err := p.processCohort(ctx, runner, spec)
		if err != nil {
			return nil, err
		}
		result.Cohorts[i] = cr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: calibrate from the anchors and apply to everyone
	low, high := result.Cohorts[lowIdx].Cohort, result.Cohorts[highIdx].Cohort
	model, err := centiloid.FitCohorts(low, high)
	if err != nil {
		return nil, fmt.Errorf("calibration failed: %w", err)
	}
	result.Model = model
	p.log.Info("calibration derived",
		"mean_low", model.MeanLow,
		"mean_high", model.MeanHigh,
		"slope", model.Slope())

	cohorts := make([]models.Cohort, len(result.Cohorts))
	for i := range result.Cohorts {
		cohorts[i] = result.Cohorts[i].Cohort
	}
	result.Records = centiloid.Calibrate(model, cohorts...)
	p.summarizeCentiloids(result)

	// Step 4: optional QA against the reference table
	if p.params.ReferenceTable != "" {
		v, err := p.validate(low, high, model)
		if err != nil {
			result.ValidationErr = err
			p.log.Warn("validation skipped", "error", err)
		} else {
			result.Validation = v
			p.log.Info("validation complete",
				"suvr_slope", v.SUVR.Slope, "suvr_intercept", v.SUVR.Intercept, "suvr_r2", v.SUVR.RSquared,
				"cl_slope", v.CL.Slope, "cl_intercept", v.CL.Intercept, "cl_r2", v.CL.RSquared)
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

func anchorIndexes(specs []CohortSpec) (low, high int, err error) {
	low, high = -1, -1
	for i, spec := range specs {
		switch spec.Role {
		case models.RoleAnchorLow:
			if low >= 0 {
				return 0, 0, fmt.Errorf("%w: %s and %s are both low anchors", ErrAnchorCohorts, specs[low].Name, spec.Name)
			}
			low = i
		case models.RoleAnchorHigh:
			if high >= 0 {
				return 0, 0, fmt.Errorf("%w: %s and %s are both high anchors", ErrAnchorCohorts, specs[high].Name, spec.Name)
			}
			high = i
		}
	}
	if low < 0 || high < 0 {
		return 0, 0, ErrAnchorCohorts
	}
	return low, high, nil
}

func (p *Pipeline) loadCalculator() (*suvr.Calculator, error) {
	roi, err := p.source.Load(p.params.ROIMask)
	if err != nil {
		return nil, fmt.Errorf("failed to load roi mask: %w", err)
	}
	ref, err := p.source.Load(p.params.RefMask)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference mask: %w", err)
	}
	return suvr.NewCalculator(roi, ref, suvr.Options{NaNPolicy: p.params.NaNPolicy})
}

func (p *Pipeline) processCohort(ctx context.Context, runner *suvr.BatchRunner, spec CohortSpec) (CohortResult, error) {
	prefix := spec.Prefix
	if prefix == "" {
		prefix = niftiio.DefaultPrefix
	}

	paths, err := niftiio.Discover(spec.Dir, prefix)
	if err != nil {
		return CohortResult{}, fmt.Errorf("cohort %s: %w", spec.Name, err)
	}
	p.log.Info("processing cohort", "cohort", spec.Name, "role", spec.Role, "subjects", len(paths))

	subjects := make([]suvr.Subject, len(paths))
	for i, path := range paths {
		subjects[i] = suvr.Subject{ID: niftiio.SubjectID(path), Path: path}
	}

	batch := runner.Run(ctx, subjects)
	for _, f := range batch.Failures {
		p.log.Warn("subject failed", "cohort", spec.Name, "subject", f.SubjectID, "error", f.Err)
	}

	cr := CohortResult{
		Cohort: models.Cohort{
			Name:    spec.Name,
			Role:    spec.Role,
			Records: batch.Records,
		},
		Failures: batch.Failures,
	}
	if len(batch.Records) > 0 {
		if cr.SUVRSummary, err = validation.Describe(cr.Cohort.SUVRs()); err != nil {
			return CohortResult{}, fmt.Errorf("cohort %s: %w", spec.Name, err)
		}
	}
	return cr, nil
}

func (p *Pipeline) summarizeCentiloids(result *Result) {
	offset := 0
	for i := range result.Cohorts {
		n := len(result.Cohorts[i].Cohort.Records)
		if n == 0 {
			continue
		}
		values := make([]float64, n)
		for j := 0; j < n; j++ {
			values[j] = result.Records[offset+j].Centiloid
		}
		offset += n

		// Describe only fails on empty input.
		result.Cohorts[i].CentiloidSummary, _ = validation.Describe(values)
	}
}

// validate compares the anchor cohorts with the reference table. Like the
// published comparison, the high anchor is listed before the low anchor.
func (p *Pipeline) validate(low, high models.Cohort, model centiloid.Model) (*Validation, error) {
	table, err := reference.Load(p.params.ReferenceTable)
	if err != nil {
		return nil, err
	}

	var refSUVR, refCL, calcSUVR, calcCL []float64
	for _, c := range []models.Cohort{high, low} {
		refRows := table.Rows(c.Role)
		if len(refRows) != len(c.Records) {
			return nil, fmt.Errorf("%w: %s has %d subjects, reference has %d %s rows",
				validation.ErrInsufficientData, c.Name, len(c.Records), len(refRows), c.Role)
		}
		refSUVR = append(refSUVR, table.SUVR(c.Role)...)
		refCL = append(refCL, table.CL(c.Role)...)
		for _, rec := range c.Records {
			calcSUVR = append(calcSUVR, rec.SUVR)
			calcCL = append(calcCL, model.Apply(rec.SUVR))
		}
	}

	suvrFit, err := validation.Validate(refSUVR, calcSUVR)
	if err != nil {
		return nil, fmt.Errorf("suvr: %w", err)
	}
	clFit, err := validation.Validate(refCL, calcCL)
	if err != nil {
		return nil, fmt.Errorf("centiloid: %w", err)
	}
	return &Validation{SUVR: suvrFit, CL: clFit}, nil
}
