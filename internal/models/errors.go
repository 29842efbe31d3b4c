package models

import (
	"fmt"
	"sort"
	"strings"
)

// InvalidInputError reports malformed or missing fields in a structure set
// or dose dataset.
type InvalidInputError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *InvalidInputError) Error() string {
	msg := "invalid input"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidInputError) Unwrap() error { return e.Cause }

// NewInvalidInput builds an InvalidInputError for a field.
func NewInvalidInput(field, format string, args ...interface{}) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ComputationError reports that the histogram of one ROI could not be
// computed.
type ComputationError struct {
	ROIID int
	Cause error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("dvh computation failed for roi %d: %v", e.ROIID, e.Cause)
}

func (e *ComputationError) Unwrap() error { return e.Cause }

// MalformedHistogramError reports a histogram that cannot be normalized.
type MalformedHistogramError struct {
	ROIID  int
	Reason string
}

func (e *MalformedHistogramError) Error() string {
	return fmt.Sprintf("malformed histogram for roi %d: %s", e.ROIID, e.Reason)
}

// IOError reports a failure to persist output.
type IOError struct {
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

// PartialResultError is returned alongside a result that covers only a
// subset of the requested ROIs. Omitted holds the cause for every ROI that
// is missing.
type PartialResultError struct {
	Requested int
	Omitted   map[int]error
}

// OmittedIDs returns the identifiers of the missing ROIs in ascending order.
func (e *PartialResultError) OmittedIDs() []int {
	ids := make([]int, 0, len(e.Omitted))
	for id := range e.Omitted {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *PartialResultError) Error() string {
	ids := e.OmittedIDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("partial result: %d of %d rois omitted [%s]",
		len(ids), e.Requested, strings.Join(parts, ", "))
}

// Unwrap exposes the per-ROI causes so errors.Is and errors.As can reach
// them.
func (e *PartialResultError) Unwrap() []error {
	errs := make([]error, 0, len(e.Omitted))
	for _, id := range e.OmittedIDs() {
		errs = append(errs, e.Omitted[id])
	}
	return errs
}
