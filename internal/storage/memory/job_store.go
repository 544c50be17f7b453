// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

type association struct {
	valid     bool
	updatedAt time.Time
}

// JobStore implements crawler.JobStore in memory. It mirrors the three-table
// layout of the relational store.
type JobStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	jobs   map[string]crawler.Job
	byURL  map[string]string
	terms  []crawler.SearchTerm
	termID map[string]int64
	assocs map[string]map[int64]association
	closed bool
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		now:    time.Now,
		jobs:   make(map[string]crawler.Job),
		byURL:  make(map[string]string),
		termID: make(map[string]int64),
		assocs: make(map[string]map[int64]association),
	}
}

// RecordOutcome upserts the job, the term and their association.
func (s *JobStore) RecordOutcome(_ context.Context, outcome crawler.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byURL[outcome.URL]; ok && owner != outcome.JobID {
		return fmt.Errorf("%w: url %s already belongs to job %s", crawler.ErrStore, outcome.URL, owner)
	}

	now := s.now().UTC()
	job, ok := s.jobs[outcome.JobID]
	if !ok {
		job = crawler.Job{ID: outcome.JobID, URL: outcome.URL}
	}
	job.Fields = fillMissing(job.Fields, outcome.Fields)
	job.UpdatedAt = now
	s.jobs[outcome.JobID] = job
	s.byURL[job.URL] = job.ID

	id := s.ensureTerm(outcome.Term, now)
	if s.assocs[outcome.JobID] == nil {
		s.assocs[outcome.JobID] = make(map[int64]association)
	}
	s.assocs[outcome.JobID][id] = association{valid: outcome.Valid, updatedAt: now}
	return nil
}

// LookupValidities returns every recorded term validity of a job.
func (s *JobStore) LookupValidities(_ context.Context, jobID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.assocs[jobID]))
	for id, a := range s.assocs[jobID] {
		out[s.termText(id)] = a.valid
	}
	return out, nil
}

// Count returns the number of distinct jobs with at least one association
// of the given validity.
func (s *JobStore) Count(_ context.Context, valid bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byTerm := range s.assocs {
		for _, a := range byTerm {
			if a.valid == valid {
				n++
				break
			}
		}
	}
	return n, nil
}

// ListAssociations returns associations matching filter ordered by job id
// then term id.
func (s *JobStore) ListAssociations(_ context.Context, filter crawler.AssociationFilter) ([]crawler.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Association
	for _, jobID := range s.sortedJobIDs() {
		for _, term := range s.terms {
			a, ok := s.assocs[jobID][term.ID]
			if !ok {
				continue
			}
			if filter.Valid != nil && a.valid != *filter.Valid {
				continue
			}
			if filter.Term != nil && term.Text != *filter.Term {
				continue
			}
			out = append(out, crawler.Association{
				JobID:     jobID,
				JobURL:    s.jobs[jobID].URL,
				Term:      term.Text,
				Valid:     a.valid,
				UpdatedAt: a.updatedAt,
			})
		}
	}
	return out, nil
}

// ListJobs returns jobs ordered by id, optionally only those with a valid
// association.
func (s *JobStore) ListJobs(_ context.Context, onlyValid bool) ([]crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Job, 0, len(s.jobs))
	for _, id := range s.sortedJobIDs() {
		if onlyValid && !s.hasValid(id) {
			continue
		}
		out = append(out, s.jobs[id])
	}
	return out, nil
}

// ListTerms returns terms ordered by id.
func (s *JobStore) ListTerms(_ context.Context) ([]crawler.SearchTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.SearchTerm(nil), s.terms...), nil
}

// TermValidities returns job id -> term -> validity for every association.
func (s *JobStore) TermValidities(_ context.Context) (map[string]map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]bool, len(s.assocs))
	for jobID, byTerm := range s.assocs {
		m := make(map[string]bool, len(byTerm))
		for id, a := range byTerm {
			m[s.termText(id)] = a.valid
		}
		out[jobID] = m
	}
	return out, nil
}

// RefreshFields overwrites stored fields with every non-nil value in fields.
func (s *JobStore) RefreshFields(_ context.Context, jobID string, fields crawler.JobFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s not found", crawler.ErrStore, jobID)
	}
	job.Fields = fillMissing(fields, job.Fields)
	job.UpdatedAt = s.now().UTC()
	s.jobs[jobID] = job
	return nil
}

// Close marks the store closed. The contents stay readable so a test can
// inspect them after the owner released the store.
func (s *JobStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *JobStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Job returns a stored job.
func (s *JobStore) Job(id string) (crawler.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *JobStore) ensureTerm(text string, now time.Time) int64 {
	if id, ok := s.termID[text]; ok {
		return id
	}
	id := int64(len(s.terms) + 1)
	s.terms = append(s.terms, crawler.SearchTerm{ID: id, Text: text, UpdatedAt: now})
	s.termID[text] = id
	return id
}

func (s *JobStore) termText(id int64) string {
	return s.terms[id-1].Text
}

func (s *JobStore) hasValid(jobID string) bool {
	for _, a := range s.assocs[jobID] {
		if a.valid {
			return true
		}
	}
	return false
}

func (s *JobStore) sortedJobIDs() []string {
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fillMissing returns primary with each nil field taken from fallback.
func fillMissing(primary, fallback crawler.JobFields) crawler.JobFields {
	out := primary
	if out.Title == nil {
		out.Title = fallback.Title
	}
	if out.Employer == nil {
		out.Employer = fallback.Employer
	}
	if out.Location == nil {
		out.Location = fallback.Location
	}
	if out.WorkType == nil {
		out.WorkType = fallback.WorkType
	}
	if out.Salary == nil {
		out.Salary = fallback.Salary
	}
	if out.PostingDate == nil {
		out.PostingDate = fallback.PostingDate
	}
	return out
}
