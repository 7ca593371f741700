package importer

import (
	"errors"
	"fmt"
)

// Per-item failures that skip a single article.
var (
	ErrMissingTitle     = errors.New("article has no title")
	ErrNoAuthor         = errors.New("article has no resolvable author")
	ErrJournalListEmpty = errors.New("journal list could not be fetched or is empty")
)

// Outcome is the result of one journal, issue or article step.
type Outcome string

// Step outcomes. Failed steps also return an error.
const (
	OutcomeCreated Outcome = "created"
	OutcomeMatched Outcome = "matched"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// guard runs step and turns a panic into a failed outcome so nothing crosses
// the item boundary.
func guard(step func() (Outcome, error)) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = OutcomeFailed, fmt.Errorf("recovered panic: %v", r)
		}
	}()
	out, err = step()
	if err != nil {
		out = OutcomeFailed
	}
	return out, err
}
