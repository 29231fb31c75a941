package proxy

import (
	"errors"
	"net/http"

	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/upstream"
)

// HandleError maps an error to the status and message written to the
// client. Unknown errors become a generic 500 so internal details are not
// exposed.
//
// Example usage:
//
//	if err != nil {
//	    status, msg := HandleError(err)
//	    WriteError(w, status, msg)
//	    return
//	}
func HandleError(err error) (int, string) {
	switch {
	case errors.Is(err, upstream.ErrMissingPath):
		return http.StatusBadRequest, "missing path"
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
