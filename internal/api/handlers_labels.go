package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/labelgest/internal/export"
	"github.com/dgallion1/labelgest/internal/extract"
	"github.com/dgallion1/labelgest/internal/parser"
	"github.com/dgallion1/labelgest/internal/pipeline"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// labelError lists the validation problems of one label.
type labelError struct {
	LabelNumber int      `json:"labelNumber"`
	Errors      []string `json:"errors"`
}

// parseResponse is the synchronous parse result. Only valid labels are
// listed; invalid ones are reported in Errors.
type parseResponse struct {
	Success       bool                     `json:"success"`
	FileName      string                   `json:"fileName,omitempty"`
	FileSize      int                      `json:"fileSize,omitempty"`
	NumPages      int                      `json:"numPages"`
	GSTIN         string                   `json:"gstin,omitempty"`
	TotalLabels   int                      `json:"totalLabels"`
	ValidLabels   int                      `json:"validLabels"`
	InvalidLabels int                      `json:"invalidLabels"`
	Labels        []extract.ValidatedLabel `json:"labels"`
	Errors        []labelError             `json:"errors"`
	Error         string                   `json:"error,omitempty"`
	Details       string                   `json:"details,omitempty"`
}

// upload is a validated file taken from a multipart request.
type upload struct {
	filename string
	data     []byte
}

// readUpload parses the multipart form and returns the "file" part. On
// failure the response has already been written. Callers remove the form's
// temporary files.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return &upload{filename: filename, data: data}, true
}

// handleParse extracts labels synchronously and answers with the full
// result.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	defer removeForm(r)
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if err := s.parseSem.Acquire(r.Context(), 1); err != nil {
		jsonError(w, "service at capacity", http.StatusServiceUnavailable)
		return
	}
	defer s.parseSem.Release(1)

	out, err := s.orchestrator.Processor().Process(r.Context(), bytes.NewReader(up.data), up.filename, pipeline.Hooks{})
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, parser.ErrUnreadable) || errors.Is(err, parser.ErrEmptyDocument) {
			code = http.StatusUnprocessableEntity
		}
		s.log.Error("parse failed", "filename", up.filename, "error", err)
		writeJSON(w, code, parseResponse{
			Success: false,
			Error:   "failed to process document",
			Details: err.Error(),
		})
		return
	}

	valid := out.Valid()
	invalid := out.Invalid()
	errs := make([]labelError, 0, len(invalid))
	for _, l := range invalid {
		errs = append(errs, labelError{LabelNumber: l.LabelNumber, Errors: l.Validation.Errors})
	}
	if valid == nil {
		valid = []extract.ValidatedLabel{}
	}

	writeJSON(w, http.StatusOK, parseResponse{
		Success:       true,
		FileName:      up.filename,
		FileSize:      len(up.data),
		NumPages:      out.Pages,
		GSTIN:         out.GSTIN,
		TotalLabels:   len(out.Labels),
		ValidLabels:   len(valid),
		InvalidLabels: len(invalid),
		Labels:        valid,
		Errors:        errs,
	})
}

// handleCreateJob queues a document for asynchronous extraction and,
// optionally, ledger submission.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	defer removeForm(r)
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	gstin := strings.ToUpper(strings.TrimSpace(r.FormValue("gstin")))
	if gstin != "" {
		if found, ok := extract.FindGSTIN(gstin); !ok || found != gstin {
			jsonError(w, "invalid gstin", http.StatusBadRequest)
			return
		}
	}
	submit := r.FormValue("submit") == "true"
	if submit && !s.orchestrator.LedgerEnabled() {
		jsonError(w, "order ledger not configured", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(up.filename, gstin, submit, up.data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"doc_id":     job.DocID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/labels/jobs/%s/status", job.ID),
		"labels_url": fmt.Sprintf("/api/labels/jobs/%s/labels", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobLabels returns the labels of a finished job, as JSON or as an
// XLSX workbook (?format=xlsx). ?sort=partner groups them by delivery
// partner.
func (s *Server) handleJobLabels(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	labels := job.Labels()
	switch r.URL.Query().Get("sort") {
	case "", "label":
	case "partner":
		labels = extract.SortByPartner(labels)
	default:
		jsonError(w, "sort must be label or partner", http.StatusBadRequest)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":     snap.ID,
			"status":     snap.Status,
			"gstin":      snap.GSTIN,
			"labels":     labels,
			"submission": snap.Submission,
		})
	case "xlsx":
		data, err := export.LabelsXLSX(labels, s.log.With("job_id", snap.ID))
		if err != nil {
			jsonError(w, "export failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		name := strings.TrimSuffix(snap.Filename, filepath.Ext(snap.Filename)) + "-labels.xlsx"
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Write(data)
	default:
		jsonError(w, "format must be json or xlsx", http.StatusBadRequest)
	}
}

func removeForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
