package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
	"search-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

type SearchHandler struct {
	searchUC      usecases_port.SearchListingsUseCase
	getListingUC  usecases_port.GetListingUseCase
	suggestionsUC usecases_port.SuggestionsUseCase
	aggregationUC usecases_port.AggregationsUseCase
	searchUsersUC usecases_port.SearchUsersUseCase
	maxRadiusKm   float64
}

func NewSearchHandler(
	searchUC usecases_port.SearchListingsUseCase,
	getListingUC usecases_port.GetListingUseCase,
	suggestionsUC usecases_port.SuggestionsUseCase,
	aggregationUC usecases_port.AggregationsUseCase,
	searchUsersUC usecases_port.SearchUsersUseCase,
	maxRadiusKm float64,
) *SearchHandler {
	return &SearchHandler{
		searchUC:      searchUC,
		getListingUC:  getListingUC,
		suggestionsUC: suggestionsUC,
		aggregationUC: aggregationUC,
		searchUsersUC: searchUsersUC,
		maxRadiusKm:   maxRadiusKm,
	}
}

// parseSearchQuery собирает SearchRequest из query-параметров GET /search/listings
func parseSearchQuery(r *http.Request) (domain.SearchRequest, error) {
	q := r.URL.Query()
	var errs paramErrors

	req := domain.SearchRequest{
		Keyword:       parseString(q, "keyword"),
		City:          parseString(q, "city"),
		District:      parseString(q, "district"),
		PropertyType:  parseString(q, "propertyType"),
		ListingType:   parseString(q, "listingType"),
		AgentID:       parseString(q, "agentId"),
		MinPrice:      parseFloat(q, "minPrice", &errs),
		MaxPrice:      parseFloat(q, "maxPrice", &errs),
		MinBedrooms:   parseInt(q, "minBedrooms", &errs),
		MaxBedrooms:   parseInt(q, "maxBedrooms", &errs),
		MinBathrooms:  parseInt(q, "minBathrooms", &errs),
		MaxBathrooms:  parseInt(q, "maxBathrooms", &errs),
		MinRating:     parseFloat(q, "minRating", &errs),
		MaxRating:     parseFloat(q, "maxRating", &errs),
		Latitude:      parseFloat(q, "latitude", &errs),
		Longitude:     parseFloat(q, "longitude", &errs),
		RadiusKm:      parseFloat(q, "radius", &errs),
		SortBy:        parseString(q, "sortBy"),
		SortDirection: parseString(q, "sortDirection"),
		Page:          parseInt(q, "page", &errs),
		Size:          parseInt(q, "size", &errs),
		Fuzzy:         parseBool(q, "fuzzy", &errs),
		Highlight:     parseBool(q, "highlight", &errs),
	}
	availability, err := domain.ParseAvailability(parseString(q, "available"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	req.Availability = availability
	return req, errs.err()
}

// checkGeo та же проверка радиуса, что и в движке, но до его вызова
func (h *SearchHandler) checkGeo(req domain.SearchRequest) error {
	if req.RadiusKm == nil {
		return nil
	}
	if *req.RadiusKm <= 0 || (h.maxRadiusKm > 0 && *req.RadiusKm > h.maxRadiusKm) {
		return fmt.Errorf("radius must be in (0, %g] km", h.maxRadiusKm)
	}
	if req.Latitude == nil || req.Longitude == nil {
		return fmt.Errorf("radius requires latitude and longitude")
	}
	if !domain.ValidCoordinates(*req.Latitude, *req.Longitude) {
		return fmt.Errorf("latitude/longitude out of range")
	}
	return nil
}

// SearchListings обрабатывает GET /api/v1/search/listings
func (h *SearchHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchQuery(r)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Warn("Invalid search parameters", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.search(w, r, req)
}

// SearchListingsPost обрабатывает POST /api/v1/search/listings
func (h *SearchHandler) SearchListingsPost(w http.ResponseWriter, r *http.Request) {
	var dto SearchRequestDTO
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req, err := dto.toDomain()
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.search(w, r, req)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, req domain.SearchRequest) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "SearchListings"})

	if err := h.checkGeo(req); err != nil {
		logger.Warn("Invalid geo parameters", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.searchUC.Execute(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSearchRequest) {
			WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to search listings")
		return
	}
	RespondWithJSON(w, http.StatusOK, toSearchResponse(res))
}

// GetListing обрабатывает GET /api/v1/search/listings/{id}
func (h *SearchHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{
		"handler":    "GetListing",
		"listing_id": id,
	})

	doc, err := h.getListingUC.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Listing not found")
			return
		}
		logger.Error("Use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get listing")
		return
	}
	RespondWithJSON(w, http.StatusOK, toListingResponse(*doc))
}

// Suggestions обрабатывает GET /api/v1/search/suggestions
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs paramErrors
	limit := intOr(q, "limit", 0, &errs)
	if err := errs.err(); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, h.suggestionsUC.Suggestions(r.Context(), q.Get("prefix"), limit))
}

// Trending обрабатывает GET /api/v1/search/trending
func (h *SearchHandler) Trending(w http.ResponseWriter, r *http.Request) {
	var errs paramErrors
	limit := intOr(r.URL.Query(), "limit", 0, &errs)
	if err := errs.err(); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, h.suggestionsUC.Trending(r.Context(), limit))
}

func (h *SearchHandler) CityAggregation(w http.ResponseWriter, r *http.Request) {
	h.aggregation(w, r, "CityAggregation", h.aggregationUC.CityAggregation)
}

func (h *SearchHandler) PriceRangeAggregation(w http.ResponseWriter, r *http.Request) {
	h.aggregation(w, r, "PriceRangeAggregation", h.aggregationUC.PriceRangeAggregation)
}

func (h *SearchHandler) PropertyTypeAggregation(w http.ResponseWriter, r *http.Request) {
	h.aggregation(w, r, "PropertyTypeAggregation", h.aggregationUC.PropertyTypeAggregation)
}

func (h *SearchHandler) aggregation(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	fn func(ctx context.Context) (map[string]int64, error),
) {
	buckets, err := fn(r.Context())
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("Aggregation failed", err, port.Fields{"handler": name})
		WriteJSONError(w, http.StatusServiceUnavailable, "Aggregation is temporarily unavailable")
		return
	}
	RespondWithJSON(w, http.StatusOK, buckets)
}

// SearchUsers обрабатывает GET /api/v1/search/users
func (h *SearchHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs paramErrors
	query := domain.UserQuery{
		Keyword: parseString(q, "keyword"),
		Role:    parseString(q, "role"),
		Page:    intOr(q, "page", 0, &errs),
		Size:    intOr(q, "size", 0, &errs),
	}
	if err := errs.err(); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.searchUsersUC.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSearchRequest) {
			WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		contextkeys.LoggerFromContext(r.Context()).Error("Use case failed", err, port.Fields{"handler": "SearchUsers"})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to search users")
		return
	}
	RespondWithJSON(w, http.StatusOK, toUserPageResponse(page))
}
