package http

import (
	"context"
	"net/http"

	"github.com/hsafari99/bell/internal/sweeper"
)

// SweepRunner triggers one cleanup pass on demand.
type SweepRunner interface {
	Sweep(ctx context.Context) sweeper.Stats
}

type AdminHandler struct {
	sweeper SweepRunner
}

func NewAdminHandler(sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	stats := h.sweeper.Sweep(r.Context())
	respondJSON(w, http.StatusOK, stats)
}
