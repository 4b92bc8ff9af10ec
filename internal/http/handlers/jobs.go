package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kali23041/3d-gsplat/internal/core"
	"github.com/kali23041/3d-gsplat/internal/domain"
)

type createJobReq struct {
	Name       string `json:"name"`
	InputCount int    `json:"input_count"`
	InputBytes int64  `json:"input_bytes"`
}

type renameJobReq struct {
	Name string `json:"name"`
}

type jobDTO struct {
	ID                  string     `json:"id"`
	OwnerID             string     `json:"owner_id"`
	Name                string     `json:"name"`
	InputCount          int        `json:"input_count"`
	InputBytes          int64      `json:"input_bytes"`
	State               string     `json:"state"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
	EstimatedDurationMs int64      `json:"estimated_duration_ms"`
	QueuePosition       int        `json:"queue_position,omitempty"`
	ProgressPercent     int        `json:"progress_percent"`
	EtaMs               int64      `json:"eta_ms"`
	FailureReason       string     `json:"failure_reason,omitempty"`
	OutputSizeBytes     int64      `json:"output_size_bytes,omitempty"`
}

func toJobDTO(j *domain.Job) jobDTO {
	percent, eta := core.LiveProgress(j, time.Now())
	return jobDTO{
		ID:                  j.ID,
		OwnerID:             j.OwnerID,
		Name:                j.Name,
		InputCount:          j.InputCount,
		InputBytes:          j.InputBytes,
		State:               string(j.State),
		CreatedAt:           j.CreatedAt,
		StartedAt:           j.StartedAt,
		FinishedAt:          j.FinishedAt,
		EstimatedDurationMs: j.EstimatedDurationMs,
		QueuePosition:       j.QueuePosition,
		ProgressPercent:     percent,
		EtaMs:               eta,
		FailureReason:       j.FailureReason,
		OutputSizeBytes:     j.OutputSizeBytes,
	}
}

// CreateJob submits a new reconstruction job for the authenticated owner.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	job, err := a.Svc.Create(r.Context(), p.UserID, req.Name, req.InputCount, req.InputBytes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toJobDTO(job))
}

// ListJobs returns the caller's jobs newest first. Admins may pass ?all=true
// to list every owner's jobs.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var jobs []*domain.Job
	if r.URL.Query().Get("all") == "true" {
		if !p.Admin {
			a.fail(w, r, domain.ErrForbidden)
			return
		}
		jobs = a.Svc.ListAll(r.Context())
	} else {
		jobs = a.Svc.ListByOwner(r.Context(), p.UserID)
	}
	items := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobDTO(j))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GetJob returns a single job visible to the caller.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	job, err := a.Svc.Get(r.Context(), chi.URLParam(r, "id"), p.UserID, p.Admin)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

// RenameJob updates the display name. Owner only.
func (a *App) RenameJob(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req renameJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	job, err := a.Svc.Rename(r.Context(), chi.URLParam(r, "id"), p.UserID, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

// DeleteJob removes a job in any state, releasing its slot if it held one.
func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.Svc.Delete(r.Context(), chi.URLParam(r, "id"), p.UserID, p.Admin); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
