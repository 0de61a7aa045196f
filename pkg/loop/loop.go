// Package loop tracks the loop counter and decides when a loop may advance.
package loop

import (
	"log/slog"
	"slices"
)

// First is the loop every new game starts in.
const First = 1

// Counter is the loop counter. The zero value is not valid; use NewCounter.
type Counter struct {
	current int
}

func NewCounter() *Counter {
	return &Counter{current: First}
}

func (c *Counter) Current() int {
	return c.current
}

// Next advances by one and returns the new loop.
func (c *Counter) Next() int {
	c.current++
	return c.current
}

func (c *Counter) Reset() {
	c.current = First
}

// Set restores a saved loop. Values below First are clamped.
func (c *Counter) Set(n int) {
	c.current = max(n, First)
}

// Requirements supplies the loop-relevant flags granted in each loop.
type Requirements interface {
	RequiredFor(loop int) []string
}

// Validator checks whether a finished loop found everything it had to.
type Validator struct {
	reqs        Requirements
	alwaysValid []int
	logger      *slog.Logger
}

// NewValidator creates a validator. Loops listed in alwaysValid pass without any check.
func NewValidator(reqs Requirements, alwaysValid []int, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		reqs:        reqs,
		alwaysValid: slices.Clone(alwaysValid),
		logger:      logger,
	}
}

// Validate reports whether loop is complete given the flags found during it.
// missing lists the required flags not yet found, in requirement order.
func (v *Validator) Validate(loop int, found func(flag string) bool) (bool, []string) {
	if slices.Contains(v.alwaysValid, loop) {
		v.logger.Debug("Loop passes unconditionally", "loop", loop)
		return true, nil
	}

	var missing []string
	if v.reqs != nil {
		for _, f := range v.reqs.RequiredFor(loop) {
			if !found(f) {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		v.logger.Info("Loop incomplete", "loop", loop, "missing", missing)
		return false, missing
	}
	return true, nil
}

// RequiredFor exposes the requirement table for diagnostics.
func (v *Validator) RequiredFor(loop int) []string {
	if v.reqs == nil {
		return nil
	}
	return v.reqs.RequiredFor(loop)
}

// AlwaysValid reports whether loop skips validation.
func (v *Validator) AlwaysValid(loop int) bool {
	return slices.Contains(v.alwaysValid, loop)
}
