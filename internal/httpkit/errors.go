package httpkit

import (
	"net/http"

	apperrors "storyreel/internal/pkg/errors"
)

// WriteError maps an application error onto the JSON error envelope. Coded
// errors carry their own HTTP status and public fields; anything else is a
// plain 500.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if apperrors.As(err, &appErr) {
		WriteErr(w, appErr.HTTPStatus(), string(appErr.Code), appErr.Message, appErr.Fields)
		return
	}
	WriteErr(w, http.StatusInternalServerError, string(apperrors.CodeInternal), "internal error", nil)
}
