// Package status tracks the state of the most recent import run.
//
// Only the latest state is kept. Writers send partial patches that are merged
// into the stored record, so a slow poller may miss intermediate states but
// always sees the newest one.
package status

import (
	"time"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
)

// Status is the run status record returned to polling clients.
type Status struct {
	RunID                  string            `json:"run_id,omitempty"`
	IsRunning              bool              `json:"is_running"`
	Cancelled              bool              `json:"cancelled"`
	StartedAt              *time.Time        `json:"started_at,omitempty"`
	FinishedAt             *time.Time        `json:"finished_at,omitempty"`
	CurrentJournal         string            `json:"current_journal,omitempty"`
	CurrentIssue           string            `json:"current_issue,omitempty"`
	CurrentArticle         string            `json:"current_article,omitempty"`
	TotalJournals          int               `json:"total_journals"`
	JournalsCompleted      int               `json:"journals_completed"`
	EstimatedTimeRemaining *float64          `json:"estimated_time_remaining,omitempty"`
	Options                nepjol.RunOptions `json:"options"`
	Stats                  nepjol.Stats      `json:"stats"`
	Error                  string            `json:"error,omitempty"`
	LastUpdate             time.Time         `json:"last_update"`
}

// Patch carries the fields a writer wants to change. Nil fields are left
// untouched.
type Patch struct {
	CurrentJournal         *string
	CurrentIssue           *string
	CurrentArticle         *string
	TotalJournals          *int
	JournalsCompleted      *int
	EstimatedTimeRemaining *float64
	Error                  *string
	Stats                  *StatsPatch
}

// StatsPatch is merged field by field into Status.Stats.
type StatsPatch struct {
	JournalsProcessed   *int
	JournalsCreated     *int
	IssuesProcessed     *int
	IssuesCreated       *int
	AuthorsCreated      *int
	AuthorsMatched      *int
	PublicationsCreated *int
	PublicationsSkipped *int
	PDFsDownloaded      *int
	Errors              *int
}

// FullStats builds a patch that overwrites every counter.
func FullStats(s nepjol.Stats) *StatsPatch {
	return &StatsPatch{
		JournalsProcessed:   &s.JournalsProcessed,
		JournalsCreated:     &s.JournalsCreated,
		IssuesProcessed:     &s.IssuesProcessed,
		IssuesCreated:       &s.IssuesCreated,
		AuthorsCreated:      &s.AuthorsCreated,
		AuthorsMatched:      &s.AuthorsMatched,
		PublicationsCreated: &s.PublicationsCreated,
		PublicationsSkipped: &s.PublicationsSkipped,
		PDFsDownloaded:      &s.PDFsDownloaded,
		Errors:              &s.Errors,
	}
}

// Apply merges p into s and stamps LastUpdate.
func (s Status) Apply(p Patch, now time.Time) Status {
	setString(&s.CurrentJournal, p.CurrentJournal)
	setString(&s.CurrentIssue, p.CurrentIssue)
	setString(&s.CurrentArticle, p.CurrentArticle)
	setString(&s.Error, p.Error)
	setInt(&s.TotalJournals, p.TotalJournals)
	setInt(&s.JournalsCompleted, p.JournalsCompleted)
	if p.EstimatedTimeRemaining != nil {
		eta := *p.EstimatedTimeRemaining
		s.EstimatedTimeRemaining = &eta
	}
	if p.Stats != nil {
		s.Stats = p.Stats.apply(s.Stats)
	}
	s.LastUpdate = now
	return s
}

func (p StatsPatch) apply(s nepjol.Stats) nepjol.Stats {
	setInt(&s.JournalsProcessed, p.JournalsProcessed)
	setInt(&s.JournalsCreated, p.JournalsCreated)
	setInt(&s.IssuesProcessed, p.IssuesProcessed)
	setInt(&s.IssuesCreated, p.IssuesCreated)
	setInt(&s.AuthorsCreated, p.AuthorsCreated)
	setInt(&s.AuthorsMatched, p.AuthorsMatched)
	setInt(&s.PublicationsCreated, p.PublicationsCreated)
	setInt(&s.PublicationsSkipped, p.PublicationsSkipped)
	setInt(&s.PDFsDownloaded, p.PDFsDownloaded)
	setInt(&s.Errors, p.Errors)
	return s
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
