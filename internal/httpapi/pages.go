package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"livepage/internal/models"
	"livepage/internal/services"
)

type markupBody struct {
	Markup string `json:"markup"`
}

type transformBody struct {
	Message    string               `json:"message"`
	PriorTurns []models.ChatMessage `json:"priorTurns,omitempty"`
	ModelID    string               `json:"modelId,omitempty"`
}

func (h *handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (h *handler) createPage(w http.ResponseWriter, r *http.Request) {
	var in services.CreatePageInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	page, err := h.pages.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (h *handler) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) updateMarkup(w http.ResponseWriter, r *http.Request) {
	var body markupBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	page, err := h.pages.UpdateMarkup(r.Context(), chi.URLParam(r, "name"), body.Markup)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) updateMetadata(w http.ResponseWriter, r *http.Request) {
	var patch services.MetadataPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	page, err := h.pages.UpdateMetadata(r.Context(), chi.URLParam(r, "name"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) deletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transform answers failed transforms with the structured result so the
// caller can render the diagnostic next to the unchanged page.
func (h *handler) transform(w http.ResponseWriter, r *http.Request) {
	var body transformBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	result, err := h.transforms.Transform(r.Context(), services.TransformRequest{
		PageName:   chi.URLParam(r, "name"),
		Message:    body.Message,
		PriorTurns: body.PriorTurns,
		ModelID:    body.ModelID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if d := result.Diagnostic; d != nil {
		switch d.Kind {
		case models.FailureBusy:
			status = http.StatusConflict
		case models.FailureNotFound:
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, result)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	records, err := h.pages.History(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	groups, err := h.models.ListModelGroups()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}
