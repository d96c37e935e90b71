package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/labelgest/internal/extract"
	"github.com/dgallion1/labelgest/internal/ledger"
	"github.com/google/uuid"
)

// JobStatus represents the state of a label extraction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusExtracting JobStatus = "extracting"
	StatusSubmitting JobStatus = "submitting"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Done reports whether the job has stopped processing.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single label document.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	GSTIN    string    `json:"gstin,omitempty"`
	Submit   bool      `json:"submit"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	labels     []extract.ValidatedLabel
	submission *ledger.Result
	errors     []string
}

// Progress tracks processing progress.
type Progress struct {
	Pages           int      `json:"pages"`
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	LabelsExtracted int      `json:"labels_extracted"`
	LabelsValid     int      `json:"labels_valid"`
	OrdersSubmitted int      `json:"orders_submitted"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for data. GSTIN may be empty, in which case
// the one printed in the document is used.
func NewJob(filename, gstin string, submit bool, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     ContentHashHex(data)[:16],
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		GSTIN:     gstin,
		Submit:    submit,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetParsed records page and chunk counts once the document is segmented.
func (j *Job) SetParsed(pages, chunks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = pages
	j.Progress.TotalChunks = chunks
	j.UpdatedAt = time.Now()
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// SetLabels stores the extracted labels and updates the counters.
func (j *Job) SetLabels(labels []extract.ValidatedLabel) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.labels = labels
	j.Progress.LabelsExtracted = len(labels)
	valid := 0
	for _, l := range labels {
		if l.Validation.IsValid {
			valid++
		}
	}
	j.Progress.LabelsValid = valid
	j.UpdatedAt = time.Now()
}

// Labels returns a copy of the extracted labels.
func (j *Job) Labels() []extract.ValidatedLabel {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]extract.ValidatedLabel, len(j.labels))
	copy(out, j.labels)
	return out
}

// SetGSTIN records the tenant key used for submission.
func (j *Job) SetGSTIN(gstin string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.GSTIN = gstin
	j.UpdatedAt = time.Now()
}

// SetSubmission records the ledger's answer.
func (j *Job) SetSubmission(res ledger.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.submission = &res
	j.Progress.OrdersSubmitted = res.Saved
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ReleaseFileData drops the upload once it is no longer needed.
func (j *Job) ReleaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string         `json:"job_id"`
	DocID      string         `json:"doc_id"`
	Status     JobStatus      `json:"status"`
	Phase      string         `json:"phase"`
	Filename   string         `json:"filename"`
	GSTIN      string         `json:"gstin,omitempty"`
	Submit     bool           `json:"submit"`
	Progress   Progress       `json:"progress"`
	Submission *ledger.Result `json:"submission,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	var sub *ledger.Result
	if j.submission != nil {
		s := *j.submission
		sub = &s
	}
	progress := j.Progress
	progress.Errors = errs
	return JobSnapshot{
		ID:         j.ID,
		DocID:      j.DocID,
		Status:     j.Status,
		Phase:      j.Phase,
		Filename:   j.Filename,
		GSTIN:      j.GSTIN,
		Submit:     j.Submit,
		Progress:   progress,
		Submission: sub,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
