package api

import (
	"net/http"
	"strings"
)

// handleListOrders reads back the orders the ledger holds for a GSTIN.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		jsonError(w, "order ledger not configured", http.StatusServiceUnavailable)
		return
	}
	gstin := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("gstin")))
	if gstin == "" {
		jsonError(w, "gstin query parameter is required", http.StatusBadRequest)
		return
	}

	orders, err := s.ledger.ListOrders(r.Context(), gstin)
	if err != nil {
		s.log.Error("list orders failed", "gstin", gstin, "error", err)
		jsonError(w, "failed to list orders: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gstin":  gstin,
		"count":  len(orders),
		"orders": orders,
	})
}
