package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/logging"
	"github.com/example/unilocal/internal/scheduler"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type moderationService interface {
	ListPending(ctx context.Context, principal application.Principal) ([]application.Place, error)
	Approve(ctx context.Context, params application.ModerationParams) (application.Place, error)
	Reject(ctx context.Context, params application.RejectPlaceParams) (application.Place, error)
	History(ctx context.Context, principal application.Principal, placeID string) ([]application.ModerationRecord, error)
	Report(ctx context.Context, principal application.Principal) ([]byte, error)
}

type ModerationHandler struct {
	service   moderationService
	locale    *scheduler.Locale
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewModerationHandler(service moderationService, locale *scheduler.Locale, now func() time.Time, logger *slog.Logger) *ModerationHandler {
	if now == nil {
		now = time.Now
	}
	base := logging.OrDefault(logger)
	return &ModerationHandler{service: service, locale: locale, now: now, responder: newResponder(base), logger: base}
}

func (h *ModerationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ModerationHandler", operation, attrs...)
}

// Pending lists the places awaiting a decision, oldest first.
func (h *ModerationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Pending", "principal_id", principal.UserID)
	places, err := h.service.ListPending(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "pending list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]moderationPlaceDTO, 0, len(places))
	for _, place := range places {
		out = append(out, h.toModerationPlaceDTO(place))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "pending places listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pendingResponse{Places: out})
}

func (h *ModerationHandler) Approve(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Approve", "principal_id", principal.UserID, "place_id", placeID)
	place, err := h.service.Approve(r.Context(), application.ModerationParams{Principal: principal, PlaceID: placeID})
	if err != nil {
		logger.ErrorContext(r.Context(), "approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "place approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, moderationResponse{Place: h.toModerationPlaceDTO(place)})
}

func (h *ModerationHandler) Reject(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Reject", "principal_id", principal.UserID, "place_id", placeID)

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode rejection", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	place, err := h.service.Reject(r.Context(), application.RejectPlaceParams{
		Principal: principal,
		PlaceID:   placeID,
		Reason:    req.Reason,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "rejection failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "place rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, moderationResponse{Place: h.toModerationPlaceDTO(place)})
}

func (h *ModerationHandler) History(w http.ResponseWriter, r *http.Request) {
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
	records, err := h.service.History(r.Context(), principal, placeID)
	if err != nil {
		h.log(r.Context(), "History", "principal_id", principal.UserID, "place_id", placeID).ErrorContext(r.Context(), "history lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]moderationRecordDTO, 0, len(records))
	for _, record := range records {
		out = append(out, moderationRecordDTO{
			ID:          record.ID,
			ModeratorID: record.ModeratorID,
			Decision:    string(record.Decision),
			Reason:      record.Reason,
			CreatedAt:   formatTime(record.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{PlaceID: placeID, Records: out})
}

// Report downloads the moderation workbook.
func (h *ModerationHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Report", "principal_id", principal.UserID)
	data, err := h.service.Report(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "report generation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	filename := "moderation-" + h.now().UTC().Format("20060102") + ".xlsx"
	logger.With("bytes", len(data)).InfoContext(r.Context(), "moderation report generated")
	h.responder.writeFile(r.Context(), w, xlsxContentType, filename, data)
}

func (h *ModerationHandler) toModerationPlaceDTO(place application.Place) moderationPlaceDTO {
	return moderationPlaceDTO{
		ID:              place.ID,
		OwnerID:         place.OwnerID,
		Name:            place.Name,
		Category:        string(place.Category),
		City:            place.City,
		Images:          nonNil(place.Images),
		Schedules:       toScheduleDTOs(h.locale, place.Schedules),
		Status:          string(place.Status),
		RejectionReason: place.RejectionReason,
		CreatedAt:       formatTime(place.CreatedAt),
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type moderationPlaceDTO struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	Name            string        `json:"name"`
	Category        string        `json:"category"`
	City            string        `json:"city"`
	Images          []string      `json:"images"`
	Schedules       []scheduleDTO `json:"schedules"`
	Status          string        `json:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	CreatedAt       string        `json:"created_at"`
}

type moderationRecordDTO struct {
	ID          string  `json:"id"`
	ModeratorID string  `json:"moderator_id"`
	Decision    string  `json:"decision"`
	Reason      *string `json:"reason,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type pendingResponse struct {
	Places []moderationPlaceDTO `json:"places"`
}

type moderationResponse struct {
	Place moderationPlaceDTO `json:"place"`
}

type historyResponse struct {
	PlaceID string                `json:"place_id"`
	Records []moderationRecordDTO `json:"records"`
}
