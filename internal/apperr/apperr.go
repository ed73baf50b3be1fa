// Package apperr implements the stable error taxonomy from spec.md §7:
// every error that can cross a service boundary carries one of a fixed
// set of "type" strings so MQTT/HTTP clients can branch on it reliably.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is one of the stable taxonomy strings from spec.md §7.
type Type string

const (
	AccessDenied                       Type = "access_denied"
	AgentNotEnteredTheRoom              Type = "agent_not_entered_the_room"
	AuthorizationFailed                 Type = "authorization_failed"
	BrokerRequestFailed                 Type = "broker_request_failed"
	ChangeNotFound                      Type = "change_not_found"
	DatabaseConnectionAcquisitionFailed Type = "database_connection_acquisition_failed"
	DatabaseQueryFailed                 Type = "database_query_failed"
	EditionCommitTaskFailed             Type = "edition_commit_task_failed"
	EditionNotFound                     Type = "edition_not_found"
	InvalidPayload                      Type = "invalid_payload"
	InvalidRoomTime                     Type = "invalid_room_time"
	InvalidStateSets                    Type = "invalid_state_sets"
	InvalidSubscriptionObject           Type = "invalid_subscription_object"
	MessageHandlingFailed               Type = "message_handling_failed"
	SerializationFailed                 Type = "serialization_failed"
	StatsCollectionFailed               Type = "stats_collection_failed"
	PublishFailed                       Type = "publish_failed"
	RoomAdjustTaskFailed                Type = "room_adjust_task_failed"
	RoomNotFound                        Type = "room_not_found"
	RoomClosed                          Type = "room_closed"
	TransientEventCreationFailed        Type = "transient_event_creation_failed"
	UnknownMethod                       Type = "unknown_method"
)

// httpStatus maps each taxonomy entry to the status the HTTP/WS surface
// reports it under. Async task failures (RoomAdjustTaskFailed,
// EditionCommitTaskFailed) never reach this table in practice since
// they are only ever published as notifications, never as request
// responses, but a mapping is kept for completeness and for tests that
// exercise the notification payload's "status" field.
var httpStatus = map[Type]int{
	AccessDenied:                        http.StatusForbidden,
	AgentNotEnteredTheRoom:              http.StatusForbidden,
	AuthorizationFailed:                 http.StatusUnauthorized,
	BrokerRequestFailed:                 http.StatusBadGateway,
	ChangeNotFound:                      http.StatusNotFound,
	DatabaseConnectionAcquisitionFailed: http.StatusServiceUnavailable,
	DatabaseQueryFailed:                 http.StatusInternalServerError,
	EditionCommitTaskFailed:             http.StatusInternalServerError,
	EditionNotFound:                     http.StatusNotFound,
	InvalidPayload:                      http.StatusBadRequest,
	InvalidRoomTime:                     http.StatusBadRequest,
	InvalidStateSets:                    http.StatusBadRequest,
	InvalidSubscriptionObject:           http.StatusBadRequest,
	MessageHandlingFailed:               http.StatusBadRequest,
	SerializationFailed:                 http.StatusInternalServerError,
	StatsCollectionFailed:               http.StatusInternalServerError,
	PublishFailed:                       http.StatusBadGateway,
	RoomAdjustTaskFailed:                http.StatusInternalServerError,
	RoomNotFound:                        http.StatusNotFound,
	RoomClosed:                          http.StatusConflict,
	TransientEventCreationFailed:        http.StatusServiceUnavailable,
	UnknownMethod:                       http.StatusMethodNotAllowed,
}

// transient marks the taxonomy entries spec.md §7 calls out as
// eligible for bounded exponential backoff before surfacing to the
// caller.
var transient = map[Type]bool{
	DatabaseConnectionAcquisitionFailed: true,
	DatabaseQueryFailed:                 true,
	PublishFailed:                       true,
	BrokerRequestFailed:                 true,
}

// Error is a taxonomy-tagged error carrying an RFC 7807-shaped detail.
type Error struct {
	Kind   Type
	Detail string
	cause  error
}

func New(kind Type, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Type, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status code the HTTP/WS handlers respond with
// for this error's Kind.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// IsTransient reports whether the error's Kind is one spec.md §7 marks
// retryable with bounded backoff inside one request.
func (e *Error) IsTransient() bool {
	return transient[e.Kind]
}

// As is a convenience wrapper over errors.As for callers that only
// need the *Error out-parameter.
func As(err error) (*Error, bool) {
	var target *Error
	ok := errors.As(err, &target)
	return target, ok
}

// ProblemDetails is the RFC 7807 response body shape.
type ProblemDetails struct {
	Type   Type   `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ToProblemDetails converts any error into a ProblemDetails body,
// defaulting unrecognized errors to database_query_failed/500 the way
// spec.md §7 treats persistent infra failures.
func ToProblemDetails(err error) ProblemDetails {
	if appErr, ok := As(err); ok {
		return ProblemDetails{
			Type:   appErr.Kind,
			Title:  string(appErr.Kind),
			Status: appErr.HTTPStatus(),
			Detail: appErr.Detail,
		}
	}
	return ProblemDetails{
		Type:   DatabaseQueryFailed,
		Title:  string(DatabaseQueryFailed),
		Status: http.StatusInternalServerError,
		Detail: err.Error(),
	}
}
