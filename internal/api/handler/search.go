// Package handler provides HTTP handlers for the TripWeave API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tripweave/tripweave/internal/api/models"
	"github.com/tripweave/tripweave/internal/api/response"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/search"
)

// SearchHandler handles search and offer lookup endpoints.
type SearchHandler struct {
	engine *engine.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(e *engine.Engine) *SearchHandler {
	return &SearchHandler{engine: e}
}

// Search handles POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		response.BadRequest(w, r, "invalid search request", validationErrors(err))
		return
	}

	out, err := h.engine.Search(r.Context(), &req)
	if err != nil {
		// Only client disconnects and context expiry surface here; supplier
		// failures degrade inside the engine.
		response.InternalError(w, r, "search could not be completed")
		return
	}

	searchID := "srch_" + uuid.New().String()[:22]
	response.JSON(w, r, http.StatusOK, models.NewSearchResponse(searchID, req.Category, out))
}

// GetOffer handles GET /v1/offers/{offerId}.
func (h *SearchHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offerId")
	if offerID == "" {
		response.BadRequest(w, r, "offerId is required", nil)
		return
	}

	result, ok := h.engine.Offer(offerID)
	if !ok {
		response.NotFound(w, r, "offer not found or expired")
		return
	}

	response.JSON(w, r, http.StatusOK, models.OfferResponse{Success: true, Data: result})
}

// validationErrors flattens a validation failure into field errors.
func validationErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]models.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, models.FieldError{
				Field:   strings.ToLower(fe.Field()),
				Message: "failed validation: " + fe.Tag(),
				Code:    fe.Tag(),
			})
		}
		return out
	}
	return []models.FieldError{{Field: "request", Message: err.Error()}}
}
