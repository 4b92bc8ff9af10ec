package handlers

import (
	"net/http"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// DashboardStats backs the dashboard tiles: job totals per lifecycle state
// for the caller, or globally for admins with ?all=true.
func (a *App) DashboardStats(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	ownerID := p.UserID
	if r.URL.Query().Get("all") == "true" {
		if !p.Admin {
			a.fail(w, r, domain.ErrForbidden)
			return
		}
		ownerID = ""
	}
	counts := a.Svc.Counts(r.Context(), ownerID)
	payload := map[string]any{
		"queued":     counts[domain.JobStateQueued],
		"processing": counts[domain.JobStateProcessing],
		"completed":  counts[domain.JobStateCompleted],
		"failed":     counts[domain.JobStateFailed],
	}
	// Slot occupancy and queue depth span all owners, so only the admin's
	// global view carries them.
	if ownerID == "" {
		payload["running"] = a.Svc.RunningCount()
		payload["queue_len"] = a.Svc.QueueLength()
	}
	a.json(w, http.StatusOK, payload)
}
