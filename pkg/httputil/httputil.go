// Package httputil holds the JSON envelope, request decoding and middleware
// shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/idcheck/mrzscan/pkg/errors"
)

// maxJSONBody caps JSON request bodies. MRZ text is tiny.
const maxJSONBody = 64 << 10

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody is the error part of the envelope
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta is the pagination block of list responses
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewMeta computes the page count for a listing of total items.
func NewMeta(page, perPage int, total int64) *Meta {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &Meta{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// JSON writes data in a success envelope. Any non-2xx status marks the
// envelope unsuccessful.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	JSONWithMeta(w, status, data, nil)
}

// JSONWithMeta is JSON with a pagination block
func JSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *Meta) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Accepted answers 202 for work that continues in the background
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// Error writes err as an error envelope. Errors that are not AppErrors are
// reported as a generic 500 so internals never reach the client.
func Error(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	write(w, status, Response{Error: body})
}

func errorBody(err error) (int, *ErrorBody) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: "an unexpected error occurred",
		}
	}
	return appErr.StatusCode, &ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}

// DecodeJSON strictly decodes a single JSON object from the request body.
// Unknown fields, trailing data and bodies over 64 KiB are rejected.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.BadRequest("invalid JSON body: request body is empty")
		}
		return errors.BadRequest("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return errors.BadRequest("invalid JSON body: unexpected data after object")
	}
	return nil
}
