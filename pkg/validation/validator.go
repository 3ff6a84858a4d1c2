// Package validation scores computed SUVR and Centiloid values against an
// external reference table.
//
// Values are aligned by position: xs[i] and ys[i] must describe the same
// subject. Callers are responsible for ordering both sequences the same way
// (cohort by cohort, subjects in discovery order); nothing here can detect a
// misaligned table.
package validation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"centiloid/internal/models"
)

var (
	// ErrInsufficientData is returned when the inputs differ in length or
	// hold fewer than two points.
	ErrInsufficientData = errors.New("validation: need two or more paired values")

	// ErrDegenerateInput is returned when an input has zero variance.
	ErrDegenerateInput = errors.New("validation: input has zero variance")
)

// Line is an ordinary least squares fit y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

func checkPaired(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: %d reference values, %d computed values", ErrInsufficientData, len(xs), len(ys))
	}
	if len(xs) < 2 {
		return fmt.Errorf("%w: got %d", ErrInsufficientData, len(xs))
	}
	if stat.Variance(xs, nil) == 0 {
		return fmt.Errorf("%w: reference values", ErrDegenerateInput)
	}
	return nil
}

// LinearFit fits ys against xs by ordinary least squares.
func LinearFit(xs, ys []float64) (Line, error) {
	if err := checkPaired(xs, ys); err != nil {
		return Line{}, err
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Line{Slope: beta, Intercept: alpha}, nil
}

// PearsonRSquared returns the squared Pearson correlation of xs and ys.
func PearsonRSquared(xs, ys []float64) (float64, error) {
	if err := checkPaired(xs, ys); err != nil {
		return 0, err
	}
	if stat.Variance(ys, nil) == 0 {
		return 0, fmt.Errorf("%w: computed values", ErrDegenerateInput)
	}
	r := stat.Correlation(xs, ys, nil)
	return r * r, nil
}

// Validate fits computed values (ys) against reference values (xs) and
// reports the line and r².
func Validate(reference, computed []float64) (models.ValidationResult, error) {
	line, err := LinearFit(reference, computed)
	if err != nil {
		return models.ValidationResult{}, err
	}
	r2, err := PearsonRSquared(reference, computed)
	if err != nil {
		return models.ValidationResult{}, err
	}
	return models.ValidationResult{
		Slope:     line.Slope,
		Intercept: line.Intercept,
		RSquared:  r2,
		N:         len(reference),
	}, nil
}
