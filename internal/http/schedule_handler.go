package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/unilocal/internal/application"
	"github.com/example/unilocal/internal/logging"
	"github.com/example/unilocal/internal/scheduler"
)

// defaultOpeningsWindow is used when the openings request has no "to".
const defaultOpeningsWindow = 7 * 24 * time.Hour

type scheduleService interface {
	GetPlace(ctx context.Context, principal application.Principal, placeID string) (application.Place, error)
	AddPlaceSchedule(ctx context.Context, params application.AddPlaceScheduleParams) (application.ScheduleEditResult, error)
	RemovePlaceSchedule(ctx context.Context, params application.RemovePlaceScheduleParams) (application.ScheduleEditResult, error)
	ClearPlaceSchedules(ctx context.Context, principal application.Principal, placeID string) (application.ScheduleEditResult, error)
	Openings(ctx context.Context, params application.OpeningsParams) ([]application.Opening, error)
	Calendar(ctx context.Context, principal application.Principal, placeID string) (string, error)
	Locale() *scheduler.Locale
}

// ScheduleHandler exposes the schedule editing session of a place.
type ScheduleHandler struct {
	service   scheduleService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, now func() time.Time, logger *slog.Logger) *ScheduleHandler {
	if now == nil {
		now = time.Now
	}
	base := logging.OrDefault(logger)
	return &ScheduleHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
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
		h.log(r.Context(), "List", "principal_id", principal.UserID, "place_id", placeID).ErrorContext(r.Context(), "schedule list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{
		Schedules: toScheduleDTOs(h.service.Locale(), place.Schedules),
	})
}

// Add runs one entry through the editing session. A rejected entry answers
// 422 with the session message.
func (h *ScheduleHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Add", "principal_id", principal.UserID, "place_id", placeID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode schedule entry", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Add", "principal_id", principal.UserID, "place_id", placeID)
	result, err := h.service.AddPlaceSchedule(r.Context(), application.AddPlaceScheduleParams{
		Principal: principal,
		PlaceID:   placeID,
		Entry:     req.toEntry(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule add failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "schedule added")
	h.renderEdit(r.Context(), w, http.StatusCreated, result)
}

// Remove drops the schedule given in the body, or every schedule when the
// request carries all=true.
func (h *ScheduleHandler) Remove(w http.ResponseWriter, r *http.Request) {
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

	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		result, err := h.service.ClearPlaceSchedules(r.Context(), principal, placeID)
		if err != nil {
			logger.ErrorContext(r.Context(), "schedule clear failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		logger.InfoContext(r.Context(), "schedules cleared")
		h.renderEdit(r.Context(), w, http.StatusOK, result)
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode schedule removal", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	schedule, err := req.toSchedule()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid schedule in removal", "error", err, "error_kind", "validation")
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"schedule": err.Error()},
		})
		return
	}

	result, err := h.service.RemovePlaceSchedule(r.Context(), application.RemovePlaceScheduleParams{
		Principal: principal,
		PlaceID:   placeID,
		Schedule:  schedule,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "schedule removed")
	h.renderEdit(r.Context(), w, http.StatusOK, result)
}

// Openings lists concrete openings between from and to (RFC3339). from
// defaults to now and to defaults to a week after from.
func (h *ScheduleHandler) Openings(w http.ResponseWriter, r *http.Request) {
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
	logger := h.log(r.Context(), "Openings", "principal_id", principal.UserID, "place_id", placeID)

	from, to, vErr := parseWindow(r, h.now())
	if vErr != nil {
		logger.ErrorContext(r.Context(), "invalid openings window", "error", vErr, "error_kind", "validation")
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	openings, err := h.service.Openings(r.Context(), application.OpeningsParams{
		Principal: principal,
		PlaceID:   placeID,
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "openings expansion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]openingDTO, 0, len(openings))
	for _, o := range openings {
		out = append(out, toOpeningDTO(o))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, openingsResponse{
		From:     formatTime(from),
		To:       formatTime(to),
		Openings: out,
	})
}

// Calendar serves the weekly schedules as an iCalendar feed.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
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
	feed, err := h.service.Calendar(r.Context(), principal, placeID)
	if err != nil {
		h.log(r.Context(), "Calendar", "principal_id", principal.UserID, "place_id", placeID).ErrorContext(r.Context(), "calendar export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeFile(r.Context(), w, "text/calendar; charset=utf-8", placeID+".ics", []byte(feed))
}

func (h *ScheduleHandler) renderEdit(ctx context.Context, w http.ResponseWriter, status int, result application.ScheduleEditResult) {
	h.responder.writeJSON(ctx, w, status, scheduleEditResponse{
		Message:   result.Message,
		Schedules: toScheduleDTOs(h.service.Locale(), result.Place.Schedules),
	})
}

func parseWindow(r *http.Request, now time.Time) (time.Time, time.Time, *application.ValidationError) {
	vErr := &application.ValidationError{}
	query := r.URL.Query()

	from := now
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			vErr.FieldErrors = map[string]string{"from": "from must be an RFC3339 timestamp"}
		} else {
			from = parsed
		}
	}

	to := from.Add(defaultOpeningsWindow)
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if vErr.FieldErrors == nil {
				vErr.FieldErrors = map[string]string{}
			}
			vErr.FieldErrors["to"] = "to must be an RFC3339 timestamp"
		} else {
			to = parsed
		}
	}

	if vErr.HasErrors() {
		return time.Time{}, time.Time{}, vErr
	}
	return from, to, nil
}

type clockRequest struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Period string `json:"period"`
}

// entryRequest is a schedule as typed in the editor form: localized day
// names and 12-hour clock readings.
type entryRequest struct {
	StartDay string       `json:"start_day"`
	EndDay   string       `json:"end_day"`
	Open     clockRequest `json:"open"`
	Close    clockRequest `json:"close"`
}

func (r entryRequest) toEntry() scheduler.EntryInput {
	return scheduler.EntryInput{
		StartDay: r.StartDay,
		EndDay:   r.EndDay,
		Open:     r.Open.toClock(),
		Close:    r.Close.toClock(),
	}
}

func (c clockRequest) toClock() scheduler.ClockTime {
	// An unknown period is passed through so the session reports it.
	period, err := scheduler.ParsePeriod(c.Period)
	if err != nil {
		period = scheduler.Period(c.Period)
	}
	return scheduler.ClockTime{Hour: c.Hour, Minute: c.Minute, Period: period}
}

// scheduleRequest identifies a stored schedule by its canonical fields.
type scheduleRequest struct {
	DayStart int    `json:"day_start"`
	DayEnd   int    `json:"day_end"`
	Opens    string `json:"opens"`
	Closes   string `json:"closes"`
}

func (r scheduleRequest) toSchedule() (scheduler.Schedule, error) {
	start, err := scheduler.ParseTimeOfDay(strings.TrimSpace(r.Opens))
	if err != nil {
		return scheduler.Schedule{}, err
	}
	end, err := scheduler.ParseTimeOfDay(strings.TrimSpace(r.Closes))
	if err != nil {
		return scheduler.Schedule{}, err
	}
	return scheduler.NewSchedule(scheduler.Day(r.DayStart), scheduler.Day(r.DayEnd), start, end)
}

type scheduleDTO struct {
	DayStart int    `json:"day_start"`
	DayEnd   int    `json:"day_end"`
	Opens    string `json:"opens"`
	Closes   string `json:"closes"`
	Label    string `json:"label"`
}

func toScheduleDTOs(locale *scheduler.Locale, schedules []scheduler.Schedule) []scheduleDTO {
	out := make([]scheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		dto := scheduleDTO{
			DayStart: int(s.DayStart()),
			DayEnd:   int(s.DayEnd()),
			Opens:    s.Start().String(),
			Closes:   s.End().String(),
		}
		if locale != nil {
			dto.Label = locale.Format(s)
		}
		out = append(out, dto)
	}
	return out
}

type openingDTO struct {
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func toOpeningDTO(o application.Opening) openingDTO {
	return openingDTO{
		Label: o.Label,
		Start: o.Start.Format(time.RFC3339),
		End:   o.End.Format(time.RFC3339),
	}
}

type listSchedulesResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type scheduleEditResponse struct {
	Message   string        `json:"message"`
	Schedules []scheduleDTO `json:"schedules"`
}

type openingsResponse struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Openings []openingDTO `json:"openings"`
}
