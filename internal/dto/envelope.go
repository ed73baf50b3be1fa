// Package dto holds the wire-level request/response shapes exchanged
// over the websocket ingress and mirrored by the HTTP surface, kept
// separate from internal/domain so storage concerns never leak into
// the wire format.
package dto

import (
	"encoding/json"
	"strconv"

	"github.com/foxford/event/internal/apperr"
)

// Request is one envelope frame: type=request, a dotted method name,
// a response topic the caller expects the reply on, an opaque
// correlation token it will match against the reply, and a
// method-specific JSON payload.
type Request struct {
	Type            string          `json:"type"`
	Method          string          `json:"method"`
	ResponseTopic   string          `json:"response_topic,omitempty"`
	CorrelationData string          `json:"correlation_data"`
	Payload         json.RawMessage `json:"payload"`
}

// Response is the reply frame: an HTTP-style status string, the same
// correlation token the request carried, and a JSON payload — either
// the method's result or an RFC 7807 problem body.
type Response struct {
	Status          string      `json:"status"`
	CorrelationData string      `json:"correlation_data"`
	Payload         interface{} `json:"payload"`
}

// NewOKResponse builds a 200-class response envelope.
func NewOKResponse(correlationData, status string, payload interface{}) Response {
	return Response{Status: status, CorrelationData: correlationData, Payload: payload}
}

// NewErrorResponse converts err into a Response carrying an RFC 7807
// problem payload, using apperr's status/taxonomy mapping.
func NewErrorResponse(correlationData string, err error) Response {
	problem := apperr.ToProblemDetails(err)
	return Response{
		Status:          strconv.Itoa(problem.Status),
		CorrelationData: correlationData,
		Payload:         problem,
	}
}

// BroadcastEvent is the envelope published to rooms/{room_id}/events
// and audiences/{audience}/events, spec.md §6's topic contract.
type BroadcastEvent struct {
	Label   string      `json:"label"`
	Payload interface{} `json:"payload"`
}
