package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/httplog"
	"github.com/go-chi/render"

	"github.com/undeadops/snip/internal/store"
	"github.com/undeadops/snip/internal/validator"
)

const (
	msgNotFound = "Short URL not found"
	msgInternal = "Internal Server Error"
)

// ErrResponse is the JSON body of every failed API call.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	ErrorText string `json:"error"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// errorResponse maps handler errors to responses. Anything unrecognised is
// logged and reported as a 500 without detail.
func errorResponse(r *http.Request, err error) render.Renderer {
	var vErr *validator.ValidationError
	switch {
	case errors.As(err, &vErr):
		return &ErrResponse{Err: err, HTTPStatusCode: http.StatusBadRequest, ErrorText: vErr.Message}
	case errors.Is(err, store.ErrNotFound):
		return &ErrResponse{Err: err, HTTPStatusCode: http.StatusNotFound, ErrorText: msgNotFound}
	}

	oplog := httplog.LogEntry(r.Context())
	oplog.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")

	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusInternalServerError, ErrorText: msgInternal}
}
