package apihandlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

// Values of APIError.Code.
const (
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal_error"
	CodeUnavailable = "unavailable"
)

// APIError is the body of every failed request:
// {"error": {"code": "not_found", "message": "job not found"}}
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, CodeBadRequest, msg)
}

// jobError answers for an error returned by the job service. Validation
// failures are the caller's fault, unknown ids are 404 and anything else is
// logged under op and hidden behind a 500.
func jobError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		BadRequest(ctx, validationMessage(err))
	case errors.Is(err, store.ErrNotFound):
		JSONError(ctx, http.StatusNotFound, CodeNotFound, "job not found")
	default:
		log.Errorf("%s: %v", op, err)
		JSONError(ctx, http.StatusInternalServerError, CodeInternal, "failed to "+op)
	}
}

// validationMessage drops the sentinel prefix from a wrapped ErrValidation.
func validationMessage(err error) string {
	if msg, ok := strings.CutPrefix(err.Error(), models.ErrValidation.Error()+": "); ok {
		return msg
	}
	return err.Error()
}
