package models

import "time"

// ResolvedSpot records the live rating a generation job used for one spot.
type ResolvedSpot struct {
	Name    string       `json:"name"`
	Rating  float64      `json:"rating"`
	Reviews int          `json:"reviews"`
	Source  RatingSource `json:"source"`
}

// JobResult is printed as JSON on stdout by the generate binary. The
// process exit code mirrors OK.
type JobResult struct {
	AreaID    string         `json:"area_id"`
	OK        bool           `json:"ok"`
	Slides    int            `json:"slides"`
	Error     string         `json:"error,omitempty"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Spots     []ResolvedSpot `json:"spots,omitempty"`
}

// JobState is the scheduler's view of one job.
type JobState string

const (
	JobSuccess JobState = "success"
	JobFailed  JobState = "failed"
)

// JobStatus is one line of a batch report.
type JobStatus struct {
	ID       string     `json:"id"`
	Status   JobState   `json:"status"`
	ExitCode *int       `json:"exit_code,omitempty"`
	Result   *JobResult `json:"result,omitempty"`
}

// BatchRunReport lists job outcomes in execution order.
type BatchRunReport struct {
	Jobs       []JobStatus `json:"jobs"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Published  bool        `json:"published"`
	GalleryErr string      `json:"gallery_error,omitempty"`
}

// Failed counts failed jobs.
func (r BatchRunReport) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Status == JobFailed {
			n++
		}
	}
	return n
}
