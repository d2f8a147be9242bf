package webadmin

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// decodeAndValidate decodes the request body into dst and runs struct
// validation, writing an error response and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
