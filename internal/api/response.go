package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"eventgate/internal/types"
)

// defaultMaxBodyBytes applies when the server config sets no limit.
const defaultMaxBodyBytes = 1 << 20

// APIErrorResponse is the error envelope of the gateway's own routes.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the structured error returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data as a JSON response with the given status. A marshal
// failure degrades to a 500 error envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeOtherSerialization),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
		return
	}
	RawJSON(w, status, body)
}

// RawJSON writes an already encoded JSON body, as produced by the dispatch
// surface.
func RawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. An AppError picks the status from
// its code; anything else is a 500 with a generic message so internal
// details do not leak.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeOtherUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	})
}

// DispatchError writes err the way the dispatch surface renders failures,
// {"error": "<message>"}, under the status of its code.
func DispatchError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	RawJSON(w, status, body)
}

// readBody reads the request body under the configured size limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.maxBodyBytes()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, mapBodyError(err, limit)
	}
	return body, nil
}

func (s *Server) maxBodyBytes() int64 {
	if s.Config != nil && s.Config.Server.MaxBodyBytes > 0 {
		return s.Config.Server.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func mapBodyError(err error, limit int64) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeConfigInvalid,
			fmt.Sprintf("request body must not exceed %d bytes", limit), err,
			map[string]any{"limit": limit})
	}
	return types.NewAppError(types.ErrCodeConfigInvalid, "failed to read request body", err)
}

// payloadJSON returns body as a JSON value: the body itself when it is JSON,
// otherwise the body as a JSON string. An empty body is null.
func payloadJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
