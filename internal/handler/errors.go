package handler

import (
	"net/http"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindRateLimited:      http.StatusTooManyRequests,
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindExpired:          http.StatusGone,
	apperr.KindConflict:         http.StatusConflict,
	apperr.KindAttemptsExceeded: http.StatusTooManyRequests,
	apperr.KindInvalidCode:      http.StatusBadRequest,
	apperr.KindUnauthorized:     http.StatusUnauthorized,
	apperr.KindInternal:         http.StatusInternalServerError,
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Internal details never leave
// the process; the service layer has already logged them.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp := model.ErrorResponse{Error: string(kind)}
	if ae, ok := apperr.As(err); ok && kind != apperr.KindInternal {
		resp.Message = ae.Message
		resp.Details = ae.Fields
	} else {
		resp.Message = "Internal server error"
	}
	c.JSON(statusFor(kind), resp)
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error:   string(apperr.KindValidation),
		Message: "Invalid request",
		Details: map[string]interface{}{"reason": err.Error()},
	})
}
