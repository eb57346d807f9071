package api

import (
	"fmt"
	"net/http"
)

func (h *handlers) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Statistics.Aggregate(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, map[string]any{
		"statistics": stats,
		"ranking":    stats.SortedDistribution(),
	})
}

func (h *handlers) exportStatistics(w http.ResponseWriter, r *http.Request) {
	exp, err := h.Statistics.ExportCSV(r.Context(), pathID(r), r.URL.Query().Get("format"))
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Data); err != nil {
		logFailure(r, "write export", err)
	}
}
