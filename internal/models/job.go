package models

import (
	"errors"
	"time"
)

// ErrPlanAlreadySet is returned when a job's plan is assigned twice.
var ErrPlanAlreadySet = errors.New("plan already set")

// JobState enumerates the states of the render/repair loop.
const (
	StateAttempting = "attempting"
	StateRepairing  = "repairing"
	StateSucceeded  = "succeeded"
	StateAborted    = "aborted"
)

// Job is the in-memory record of one prompt-to-video request. It is never persisted.
type Job struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Quality   Quality   `json:"quality"`
	Artifact  string    `json:"-"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`

	plan    string
	planSet bool
}

// NewJob creates a job for the given prompt and quality.
func NewJob(id, prompt string, quality Quality) *Job {
	return &Job{
		ID:        id,
		Prompt:    prompt,
		Quality:   quality,
		CreatedAt: time.Now(),
	}
}

// SetPlan records the plan. It can only be called once per job.
func (j *Job) SetPlan(plan string) error {
	if j.planSet {
		return ErrPlanAlreadySet
	}
	j.plan = plan
	j.planSet = true
	return nil
}

// Plan returns the plan produced at job start.
func (j *Job) Plan() string {
	return j.plan
}
