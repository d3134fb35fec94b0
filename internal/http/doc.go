// Package http exposes the UniLocal API over net/http.
//
// Routes use ServeMux method patterns. Registration and sign-in are public;
// every other route needs a session token sent as `Authorization: Bearer`,
// `X-Session-Token` or the `session_token` cookie.
//
//   - POST /register, POST /sessions, POST /sessions/refresh,
//     DELETE /sessions/current: account and session endpoints.
//   - /users/me and /users/me/password act on the caller. GET /users is for
//     moderators.
//   - /places and /places/{id} manage places. GET /places/{id} adds open_now
//     and next_opening.
//   - /places/{id}/schedules runs the schedule editing session. POST adds a
//     typed entry ({start_day, end_day, open, close} with 12-hour clock
//     readings), DELETE removes the schedule in the body or, with ?all=true,
//     every schedule. Rejected entries answer 422 with the session message.
//   - GET /places/{id}/openings?from&to and GET /places/{id}/calendar.ics
//     expand the weekly schedules.
//   - PUT and DELETE /places/{id}/favorite, GET /favorites.
//   - /moderation/... lists, approves and rejects pending places and exports
//     the moderation workbook.
//
// Request/response DTOs live alongside their respective handlers.
package http
