package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
)

const (
	defaultPartsLimit   = 10
	defaultRepairsLimit = 5
	maxSearchLimit      = 50
)

// CatalogHandler exposes direct catalog lookups.
type CatalogHandler struct {
	logger *observability.Logger
	store  catalog.Store
	fast   *retrieval.FastLookupResolver
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(logger *observability.Logger, store catalog.Store, fast *retrieval.FastLookupResolver) *CatalogHandler {
	return &CatalogHandler{
		logger: logger,
		store:  store,
		fast:   fast,
	}
}

// SearchRequestDTO is the body of the search endpoints.
type SearchRequestDTO struct {
	Query         string `json:"query"`
	ApplianceType string `json:"appliance_type,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

func (req *SearchRequestDTO) limit(def int) int {
	switch {
	case req.Limit <= 0:
		return def
	case req.Limit > maxSearchLimit:
		return maxSearchLimit
	}
	return req.Limit
}

// SearchParts handles POST /api/search/parts.
func (h *CatalogHandler) SearchParts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.searchRequest(w, r)
	if !ok {
		return
	}

	filter := catalog.Filter{Appliance: appliance.Parse(req.ApplianceType), Brand: req.Brand}
	parts, err := h.store.Search(r.Context(), req.Query, filter, req.limit(defaultPartsLimit))
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Parts search failed")
		writeError(w, h.logger, http.StatusInternalServerError, "parts search failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"results": nonNil(parts)})
}

// SearchRepairs handles POST /api/search/repairs.
func (h *CatalogHandler) SearchRepairs(w http.ResponseWriter, r *http.Request) {
	req, ok := h.searchRequest(w, r)
	if !ok {
		return
	}

	repairs, err := h.store.SearchRepairs(r.Context(), req.Query, appliance.Parse(req.ApplianceType), req.limit(defaultRepairsLimit))
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Repairs search failed")
		writeError(w, h.logger, http.StatusInternalServerError, "repairs search failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"results": nonNil(repairs)})
}

func (h *CatalogHandler) searchRequest(w http.ResponseWriter, r *http.Request) (*SearchRequestDTO, bool) {
	var req SearchRequestDTO
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return nil, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, h.logger, http.StatusBadRequest, "query is required", "")
		return nil, false
	}
	return &req, true
}

// GetPart handles GET /api/part/{id}.
func (h *CatalogHandler) GetPart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	part, err := h.store.FindByIdentifier(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "part not found", id)
		return
	case err != nil:
		h.logger.WithContext(r.Context()).Error().Err(err).Str("part_id", id).Msg("Part lookup failed")
		writeError(w, h.logger, http.StatusInternalServerError, "part lookup failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, part)
}

// CompatibilityRequestDTO is the body of POST /api/compatibility.
type CompatibilityRequestDTO struct {
	PartID      string `json:"part_id"`
	ModelNumber string `json:"model_number"`
}

// CompatibilityResponseDTO reports whether a part fits a model and how
// that was decided.
type CompatibilityResponseDTO struct {
	PartID         string         `json:"part_id"`
	ModelNumber    string         `json:"model_number"`
	Compatible     bool           `json:"compatible"`
	Method         string         `json:"method"`
	PartAppliance  appliance.Type `json:"part_appliance,omitempty"`
	ModelAppliance appliance.Type `json:"model_appliance,omitempty"`
	Message        string         `json:"message"`
}

// Compatibility handles POST /api/compatibility. An appliance-type
// mismatch is decided from the prefix index alone; otherwise the part's
// compatible-models list is consulted.
func (h *CatalogHandler) Compatibility(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequestDTO
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.PartID = strings.ToUpper(strings.TrimSpace(req.PartID))
	req.ModelNumber = strings.ToUpper(strings.TrimSpace(req.ModelNumber))
	if req.PartID == "" || req.ModelNumber == "" {
		writeError(w, h.logger, http.StatusBadRequest, "part_id and model_number are required", "")
		return
	}

	resp := CompatibilityResponseDTO{PartID: req.PartID, ModelNumber: req.ModelNumber}

	if h.fast != nil {
		c, ok := h.fast.CheckCompatibility(retrieval.Detection{
			PartNumbers:  []string{req.PartID},
			ModelNumbers: []string{req.ModelNumber},
		})
		if ok {
			resp.PartAppliance = c.PartAppliance
			resp.ModelAppliance = c.ModelAppliance
			if !c.Compatible {
				resp.Method = "appliance_type"
				resp.Message = retrieval.CompatibilityMessage(c)
				writeJSON(w, h.logger, http.StatusOK, resp)
				return
			}
		}
	}

	part, err := h.store.FindByIdentifier(r.Context(), req.PartID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "part not found", req.PartID)
		return
	case err != nil:
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Compatibility lookup failed")
		writeError(w, h.logger, http.StatusInternalServerError, "compatibility check failed", err.Error())
		return
	}

	resp.Method = "compatible_models"
	resp.Compatible = part.FitsModel(req.ModelNumber)
	if resp.Compatible {
		resp.Message = "Part " + req.PartID + " is listed as compatible with model " + req.ModelNumber + "."
	} else {
		resp.Message = "Part " + req.PartID + " is not listed for model " + req.ModelNumber +
			". Check the model number or ask about the symptom you are fixing."
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
