package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"healthpay-wallet/internal/adapter/http/dto"
	"healthpay-wallet/internal/adapter/http/middleware"
	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bindJSON decodes, validates and sanitizes the request body into req. On
// failure the error response has been written and false is returned.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// bindQuery is bindJSON for query parameters.
func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.Error(c, bindError(err))
		return false
	}
	return true
}

// callerID returns the authenticated caller, writing AUTH_003 when the route
// was reached without one.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return id, ok
}

func bindError(err error) *apperror.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ErrBodyTooLarge(tooLarge.Limit)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperror.Validation(dto.FieldMessage(verrs[0]))
	}

	if errors.Is(err, io.EOF) {
		return apperror.Validation("request body is required")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.Validation(typeErr.Field + " has the wrong type")
	}
	return apperror.Validation("malformed request")
}
