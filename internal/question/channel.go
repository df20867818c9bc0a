// Package question implements the human-in-the-loop suspension point: a
// per-job channel where the pipeline posts a question, blocks on the
// answer, and resumes deterministically once a responder supplies one.
//
// The waiter suspends via cooperative polling with exponential backoff, so
// a pending question never busy-loops and never blocks other jobs. A
// cancelled job unblocks the waiter with ErrCancelled instead of hanging.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type declares the answer domain of a question.
type Type string

const (
	TypeYesNo        Type = "yes_no"
	TypeChoice       Type = "choice"
	TypeText         Type = "text"
	TypeSkipContinue Type = "skip_continue"
)

// Status of a question.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnswered Status = "answered"
)

var (
	// ErrCancelled unblocks a waiter whose job was cancelled or failed
	// while its question was pending.
	ErrCancelled = errors.New("question cancelled")

	// ErrQuestionPending rejects a second outstanding question; the
	// pipeline serializes record processing, so one at a time.
	ErrQuestionPending = errors.New("another question is already pending")

	// ErrInvalidAnswer rejects an answer outside the declared type's
	// domain. The responder is asked again.
	ErrInvalidAnswer = errors.New("answer not valid for question type")

	// ErrAnswerRetries escalates after too many invalid answers.
	ErrAnswerRetries = errors.New("invalid answer retry limit reached")

	// ErrNotFound is returned for an unknown question id.
	ErrNotFound = errors.New("question not found")

	// ErrAlreadyAnswered rejects a second answer to the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
)

// Question is one pending or answered decision request.
type Question struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Type       Type      `json:"type"`
	Text       string    `json:"text"`
	Context    string    `json:"context,omitempty"`
	Options    []string  `json:"options,omitempty"`
	Status     Status    `json:"status"`
	Answer     string    `json:"answer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	AnsweredAt time.Time `json:"answered_at,omitzero"`

	retries int
}

// Backoff bounds for the polling loop inside Ask.
const (
	pollInitial = 50 * time.Millisecond
	pollMax     = 2 * time.Second
)

// DefaultRetryLimit caps invalid answers per question before the ask fails.
const DefaultRetryLimit = 3

// Channel coordinates questions for one job.
type Channel struct {
	mu          sync.Mutex
	jobID       string
	questions   map[string]*Question
	order       []string
	outstanding string
	retryLimit  int
	done        chan struct{}
	closeOnce   sync.Once
}

// NewChannel creates the question channel for a job.
func NewChannel(jobID string) *Channel {
	return &Channel{
		jobID:      jobID,
		questions:  make(map[string]*Question),
		retryLimit: DefaultRetryLimit,
		done:       make(chan struct{}),
	}
}

// SetRetryLimit overrides the invalid-answer cap. Values below one are
// ignored. Called once at wiring time, before any question is posted.
func (c *Channel) SetRetryLimit(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	c.retryLimit = n
	c.mu.Unlock()
}

// Post registers a pending question and returns its id immediately.
// Only one question may be outstanding at a time.
func (c *Channel) Post(q Question) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outstanding != "" {
		return "", ErrQuestionPending
	}

	q.ID = uuid.New().String()
	q.JobID = c.jobID
	q.Status = StatusPending
	q.CreatedAt = time.Now().UTC()

	c.questions[q.ID] = &q
	c.order = append(c.order, q.ID)
	c.outstanding = q.ID

	return q.ID, nil
}

// Poll returns a snapshot of a question by id.
func (c *Channel) Poll(id string) (Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.questions[id]
	if !ok {
		return Question{}, false
	}
	return *q, true
}

// Answer validates and applies a responder's answer. Invalid answers are
// rejected with ErrInvalidAnswer so the responder can try again; after the
// retry limit the question fails permanently with ErrAnswerRetries and the
// waiter is released with the same error.
func (c *Channel) Answer(id, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.questions[id]
	if !ok {
		return ErrNotFound
	}
	if q.Status == StatusAnswered {
		return ErrAlreadyAnswered
	}

	canonical, err := ValidateAnswer(q.Type, q.Options, value)
	if err != nil {
		q.retries++
		if q.retries >= c.retryLimit {
			q.Status = StatusAnswered
			q.Answer = ""
			q.AnsweredAt = time.Now().UTC()
			c.outstanding = ""
			return fmt.Errorf("%w after %d attempts", ErrAnswerRetries, q.retries)
		}
		return fmt.Errorf("%w: %s expects %s", ErrInvalidAnswer, q.Type, expected(q))
	}

	q.Status = StatusAnswered
	q.Answer = canonical
	q.AnsweredAt = time.Now().UTC()
	c.outstanding = ""

	return nil
}

// Ask posts a question and blocks until it is answered or the context is
// cancelled. Suspension is cooperative polling with exponential backoff;
// unrelated jobs and the status/log paths are never blocked.
func (c *Channel) Ask(ctx context.Context, q Question) (string, error) {
	id, err := c.Post(q)
	if err != nil {
		return "", err
	}

	backoff := pollInitial
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.abandon(id)
			return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-c.done:
			c.abandon(id)
			return "", ErrCancelled
		case <-timer.C:
		}

		current, ok := c.Poll(id)
		if !ok {
			return "", ErrNotFound
		}
		if current.Status == StatusAnswered {
			if current.Answer == "" && current.retries >= c.retryLimit {
				return "", ErrAnswerRetries
			}
			return current.Answer, nil
		}

		backoff *= 2
		if backoff > pollMax {
			backoff = pollMax
		}
		timer.Reset(backoff)
	}
}

// Cancel releases any waiter with ErrCancelled. Called when the enclosing
// job is cancelled or marked failed. Safe to call more than once.
func (c *Channel) Cancel() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Pending returns the currently outstanding question, if any.
func (c *Channel) Pending() (Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outstanding == "" {
		return Question{}, false
	}
	return *c.questions[c.outstanding], true
}

// All returns every question in creation order.
func (c *Channel) All() []Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Question, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.questions[id])
	}
	return out
}

// abandon clears the outstanding marker for a question whose waiter gave
// up, so the channel is usable if the job resumes.
func (c *Channel) abandon(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outstanding == id {
		c.outstanding = ""
	}
}

// ValidateAnswer checks value against the declared answer domain and
// returns its canonical form.
func ValidateAnswer(t Type, options []string, value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))

	switch t {
	case TypeYesNo:
		if v == "yes" || v == "no" {
			return v, nil
		}
	case TypeSkipContinue:
		if v == "skip" || v == "continue" {
			return v, nil
		}
	case TypeChoice:
		for _, opt := range options {
			if strings.EqualFold(opt, strings.TrimSpace(value)) {
				return opt, nil
			}
		}
	case TypeText:
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), nil
		}
	}

	return "", ErrInvalidAnswer
}

func expected(q *Question) string {
	switch q.Type {
	case TypeYesNo:
		return "yes or no"
	case TypeSkipContinue:
		return "skip or continue"
	case TypeChoice:
		return "one of: " + strings.Join(q.Options, ", ")
	default:
		return "non-empty text"
	}
}
