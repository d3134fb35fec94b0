package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/logging"
	"github.com/example/unilocal/internal/scheduler"
)

type placeService interface {
	CreatePlace(ctx context.Context, params application.CreatePlaceParams) (application.Place, error)
	UpdatePlace(ctx context.Context, params application.UpdatePlaceParams) (application.Place, error)
	DeletePlace(ctx context.Context, principal application.Principal, placeID string) error
	GetPlace(ctx context.Context, principal application.Principal, placeID string) (application.Place, error)
	ListPlaces(ctx context.Context, params application.ListPlacesParams) ([]application.Place, error)
	IsOpen(place application.Place, at time.Time) bool
	NextOpening(place application.Place, after time.Time) (application.Opening, bool)
	Locale() *scheduler.Locale
}

type PlaceHandler struct {
	service   placeService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewPlaceHandler(service placeService, now func() time.Time, logger *slog.Logger) *PlaceHandler {
	if now == nil {
		now = time.Now
	}
	base := logging.OrDefault(logger)
	return &PlaceHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *PlaceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PlaceHandler", operation, attrs...)
}

func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req placeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode place request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	place, err := h.service.CreatePlace(r.Context(), application.CreatePlaceParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "place creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("place_id", place.ID).InfoContext(r.Context(), "place created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, placeResponse{Place: h.toPlaceDTO(place, false)})
}

func (h *PlaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	placeID, ok := placeIDFromRequest(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPlaceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	place, err := h.service.GetPlace(r.Context(), principal, placeID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "place_id", placeID).ErrorContext(r.Context(), "place lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, placeResponse{Place: h.toPlaceDTO(place, true)})
}

func (h *PlaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	placeID, ok := placeIDFromRequest(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPlaceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req placeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "place_id", placeID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode place update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "place_id", placeID)
	place, err := h.service.UpdatePlace(r.Context(), application.UpdatePlaceParams{
		Principal: principal,
		PlaceID:   placeID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "place update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "place updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, placeResponse{Place: h.toPlaceDTO(place, false)})
}

func (h *PlaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	placeID, ok := placeIDFromRequest(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPlaceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "place_id", placeID)
	if err := h.service.DeletePlace(r.Context(), principal, placeID); err != nil {
		logger.ErrorContext(r.Context(), "place delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "place deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List supports q, category, city, owner, status and open_at (RFC3339)
// query parameters. owner=me selects the caller's places.
func (h *PlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	filter, err := buildPlaceFilter(r.URL.Query(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid place filter", "error", err, "error_kind", "bad_request")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	places, err := h.service.ListPlaces(r.Context(), application.ListPlacesParams{Principal: principal, Filter: filter})
	if err != nil {
		logger.ErrorContext(r.Context(), "place list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]placeDTO, 0, len(places))
	for _, place := range places {
		out = append(out, h.toPlaceDTO(place, false))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "places listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPlacesResponse{Places: out})
}

func buildPlaceFilter(values url.Values, principal application.Principal) (application.PlaceFilter, error) {
	filter := application.PlaceFilter{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: application.Category(strings.ToLower(strings.TrimSpace(values.Get("category")))),
		City:     strings.TrimSpace(values.Get("city")),
		OwnerID:  strings.TrimSpace(values.Get("owner")),
		Status:   application.PlaceStatus(strings.ToLower(strings.TrimSpace(values.Get("status")))),
	}
	if filter.OwnerID == "me" {
		filter.OwnerID = principal.UserID
	}
	if raw := strings.TrimSpace(values.Get("open_at")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			vErr := &application.ValidationError{FieldErrors: map[string]string{"open_at": "open_at must be an RFC3339 timestamp"}}
			return application.PlaceFilter{}, vErr
		}
		filter.OpenAt = &at
	}
	return filter, nil
}

func placeIDFromRequest(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	return id, id != ""
}

type placeRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Address     string         `json:"address"`
	City        string         `json:"city"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Phones      []string       `json:"phones"`
	Images      []string       `json:"images"`
	Schedules   []entryRequest `json:"schedules"`
}

func (r placeRequest) toInput() application.PlaceInput {
	entries := make([]scheduler.EntryInput, 0, len(r.Schedules))
	for _, entry := range r.Schedules {
		entries = append(entries, entry.toEntry())
	}
	return application.PlaceInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    application.Category(strings.ToLower(strings.TrimSpace(r.Category))),
		Address:     r.Address,
		City:        r.City,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Phones:      r.Phones,
		Images:      r.Images,
		Schedules:   entries,
	}
}

type placeResponse struct {
	Place placeDTO `json:"place"`
}

type listPlacesResponse struct {
	Places []placeDTO `json:"places"`
}

type placeDTO struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Category        string        `json:"category"`
	Address         string        `json:"address"`
	City            string        `json:"city"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Phones          []string      `json:"phones"`
	Images          []string      `json:"images"`
	Schedules       []scheduleDTO `json:"schedules"`
	Status          string        `json:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	OpenNow         *bool         `json:"open_now,omitempty"`
	NextOpening     *openingDTO   `json:"next_opening,omitempty"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
}

// toPlaceDTO renders place. withStatus adds open_now and next_opening
// relative to the handler clock.
func (h *PlaceHandler) toPlaceDTO(place application.Place, withStatus bool) placeDTO {
	dto := placeDTO{
		ID:              place.ID,
		OwnerID:         place.OwnerID,
		Name:            place.Name,
		Description:     place.Description,
		Category:        string(place.Category),
		Address:         place.Address,
		City:            place.City,
		Latitude:        place.Latitude,
		Longitude:       place.Longitude,
		Phones:          nonNil(place.Phones),
		Images:          nonNil(place.Images),
		Schedules:       toScheduleDTOs(h.service.Locale(), place.Schedules),
		Status:          string(place.Status),
		RejectionReason: place.RejectionReason,
		CreatedAt:       formatTime(place.CreatedAt),
		UpdatedAt:       formatTime(place.UpdatedAt),
	}
	if withStatus {
		now := h.now()
		dto.OpenNow = ptr(h.service.IsOpen(place, now))
		if next, ok := h.service.NextOpening(place, now); ok {
			dto.NextOpening = ptr(toOpeningDTO(next))
		}
	}
	return dto
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
