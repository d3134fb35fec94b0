package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/logging"
	"github.com/example/unilocal/internal/scheduler"
)

type favoriteService interface {
	AddFavorite(ctx context.Context, principal application.Principal, placeID string) error
	RemoveFavorite(ctx context.Context, principal application.Principal, placeID string) error
	ListFavorites(ctx context.Context, principal application.Principal) ([]application.FavoritePlace, error)
}

type FavoriteHandler struct {
	service   favoriteService
	locale    *scheduler.Locale
	responder responder
	logger    *slog.Logger
}

// NewFavoriteHandler builds the handler. locale labels the schedules of
// listed places and may be nil.
func NewFavoriteHandler(service favoriteService, locale *scheduler.Locale, logger *slog.Logger) *FavoriteHandler {
	base := logging.OrDefault(logger)
	return &FavoriteHandler{service: service, locale: locale, responder: newResponder(base), logger: base}
}

func (h *FavoriteHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FavoriteHandler", operation, attrs...)
}

func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Add", "principal_id", principal.UserID, "place_id", placeID)
	if err := h.service.AddFavorite(r.Context(), principal, placeID); err != nil {
		logger.ErrorContext(r.Context(), "favorite add failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "favorite saved")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Remove", "principal_id", principal.UserID, "place_id", placeID)
	if err := h.service.RemoveFavorite(r.Context(), principal, placeID); err != nil {
		logger.ErrorContext(r.Context(), "favorite removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "favorite removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	favorites, err := h.service.ListFavorites(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "favorite list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]favoriteDTO, 0, len(favorites))
	for _, fav := range favorites {
		out = append(out, favoriteDTO{
			SavedAt: formatTime(fav.SavedAt),
			Place: placeSummaryDTO{
				ID:        fav.Place.ID,
				Name:      fav.Place.Name,
				Category:  string(fav.Place.Category),
				City:      fav.Place.City,
				Schedules: toScheduleDTOs(h.locale, fav.Place.Schedules),
			},
		})
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "favorites listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listFavoritesResponse{Favorites: out})
}

type placeSummaryDTO struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	City      string        `json:"city"`
	Schedules []scheduleDTO `json:"schedules"`
}

type favoriteDTO struct {
	Place   placeSummaryDTO `json:"place"`
	SavedAt string          `json:"saved_at"`
}

type listFavoritesResponse struct {
	Favorites []favoriteDTO `json:"favorites"`
}
