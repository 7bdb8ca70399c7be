package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/homequest/internal/middleware"
)

const maxBodyBytes = 1 << 20

// readBody reads a bounded JSON body and the "id" member it may carry.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	var ref struct {
		ID string `json:"id"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		// Malformed bodies are reported by the service decoder.
		_ = json.Unmarshal(body, &ref)
	}
	return body, strings.TrimSpace(ref.ID), nil
}

func (h *Handler) AddBuyer(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	buyer, err := h.buyers.Add(r.Context(), owner, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": "Buyer data added successfully",
		"data":    buyer,
	})
}

// Buyers lists the caller's buyers, or returns one when ?id= is given.
func (h *Handler) Buyers(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	if id := strings.TrimSpace(q.Get("id")); id != "" {
		buyer, err := h.buyers.Get(r.Context(), owner, id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{"success": true, "info": buyer})
		return
	}

	buyers, err := h.buyers.List(r.Context(), owner, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(buyers) == 0 {
		writeJSON(w, http.StatusOK, envelope{
			"success": false,
			"error":   "No buyers found",
			"message": "No buyers match the specified criteria",
			"buyers":  []any{},
		})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "buyers": buyers})
}

func (h *Handler) DeleteBuyer(w http.ResponseWriter, r *http.Request) {
	_, id, err := readBody(w, r)
	if err != nil {
		clientError(w, "Invalid request body", err.Error())
		return
	}
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("id"))
	}

	deleted, err := h.buyers.Delete(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Buyer deleted successfully",
		"data":    deleted,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		clientError(w, "Invalid request body", "Request body must be a JSON object")
		return
	}

	buyer, err := h.buyers.UpdateStatus(r.Context(), middleware.GetUserID(r.Context()), strings.TrimSpace(req.ID), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Buyer status updated successfully",
		"data":    buyer,
	})
}

// UpdateBuyer applies a partial update. The ID comes from the path on
// /buyer/edit/{id} and from the body on /buyer/update_buyer.
func (h *Handler) UpdateBuyer(w http.ResponseWriter, r *http.Request) {
	body, bodyID, err := readBody(w, r)
	if err != nil {
		clientError(w, "Invalid request body", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		id = bodyID
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	buyer, changed, err := h.buyers.Update(r.Context(), middleware.GetUserID(r.Context()), id, bytes.NewReader(body))
	if err != nil {
		h.writeError(w, err)
		return
	}
	msg := "Buyer updated successfully"
	if !changed {
		msg = "No changes detected"
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": msg, "data": buyer})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	history, err := h.buyers.History(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(history) == 0 {
		writeJSON(w, http.StatusOK, envelope{"success": true, "history": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "history": history})
}

// Count reports the dashboard totals.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	stats, err := h.buyers.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":      true,
		"totalClients": stats.Total,
		"pendingDeals": stats.Pending,
	})
}
