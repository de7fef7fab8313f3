package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/upload"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	messageInternalError      = "Something went wrong. Please try again later."
	messageMalformedBody      = "Invalid request body."
	messageNotFound           = "Resource not found."
	messageConflict           = "Resource already exists."
	messageAuthRequired       = "authentication required"
	messageInsufficientRole   = "insufficient permission"
	messageInvalidCredentials = "Invalid email or password."
	messageAlreadySubscribed  = "Email is already subscribed to our newsletter."
	messageImageNotFound      = "Image not found."

	logEventRequestFailed = "request_failed"
)

// errMalformedBody reports a body that could not be decoded.
var errMalformedBody = errors.New("httpapi: malformed request body")

// badRequestMessages maps domain rejections onto client messages.
var badRequestMessages = []struct {
	target  error
	message string
}{
	{target: model.ErrInvalidProjectCategory, message: "Invalid category"},
	{target: model.ErrInvalidProjectStatus, message: "Invalid status"},
	{target: model.ErrInvalidContactType, message: "Invalid inquiry type"},
	{target: model.ErrInvalidContactStatus, message: "Invalid status"},
	{target: model.ErrInvalidContactEmail, message: "Please provide a valid email"},
	{target: model.ErrInvalidSubscriberEmail, message: "Please provide a valid email"},
	{target: model.ErrInvalidSubscriberName, message: "Name must not exceed 100 characters"},
	{target: model.ErrEmptyNote, message: "Note content is required"},
	{target: service.ErrMissingProjectField, message: "Title, description, category and location are required"},
	{target: service.ErrAlreadySubscribed, message: messageAlreadySubscribed},
	{target: errMalformedBody, message: messageMalformedBody},
}

// resourceNotFound names the missing resource in the client message.
type resourceNotFound struct {
	message string
	err     error
}

func (err *resourceNotFound) Error() string {
	return err.err.Error()
}

func (err *resourceNotFound) Unwrap() error {
	return err.err
}

func labelNotFound(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &resourceNotFound{message: message, err: err}
	}
	return err
}

// ErrorBoundary renders the last error a handler or middleware attached to the context.
// Unclassified errors become a generic 500 and are logged.
func ErrorBoundary(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		context.Next()
		if len(context.Errors) == 0 || context.Writer.Written() {
			return
		}
		err := context.Errors.Last().Err
		status, message, fieldErrors := classifyError(err)
		if status >= http.StatusInternalServerError {
			logger.Error(logEventRequestFailed,
				zap.Error(err),
				zap.String("method", context.Request.Method),
				zap.String("path", context.Request.URL.Path),
			)
		}
		respondError(context, status, message, fieldErrors)
	}
}

func classifyError(err error) (int, string, validation.Errors) {
	var fieldErrors validation.Errors
	if errors.As(err, &fieldErrors) {
		return http.StatusBadRequest, fieldErrors.Message(), fieldErrors
	}
	var queryErr *validation.QueryError
	if errors.As(err, &queryErr) {
		return http.StatusBadRequest, queryErr.Message, nil
	}
	var uploadErr *upload.Error
	if errors.As(err, &uploadErr) {
		if uploadErr.Field == "" {
			return http.StatusBadRequest, uploadErr.Message, nil
		}
		return http.StatusBadRequest, uploadErr.Message, validation.Errors{{Field: uploadErr.Field, Message: uploadErr.Message}}
	}
	var notFound *resourceNotFound
	if errors.As(err, &notFound) {
		return http.StatusNotFound, notFound.message, nil
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, messageInvalidCredentials, nil
	case errors.Is(err, auth.ErrAuthenticationRequired):
		return http.StatusUnauthorized, messageAuthRequired, nil
	case errors.Is(err, auth.ErrInsufficientPermission):
		return http.StatusForbidden, messageInsufficientRole, nil
	case errors.Is(err, service.ErrImageNotFound):
		return http.StatusNotFound, messageImageNotFound, nil
	case errors.Is(err, upload.ErrBlobNotFound):
		return http.StatusNotFound, "File not found", nil
	case errors.Is(err, upload.ErrInvalidBlobName):
		return http.StatusBadRequest, "Invalid file name", nil
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, messageNotFound, nil
	}
	for _, candidate := range badRequestMessages {
		if errors.Is(err, candidate.target) {
			return http.StatusBadRequest, candidate.message, nil
		}
	}
	if errors.Is(err, storage.ErrDuplicate) {
		return http.StatusConflict, messageConflict, nil
	}
	return http.StatusInternalServerError, messageInternalError, nil
}

// RouteNotFound renders unknown routes in the response envelope.
func RouteNotFound(context *gin.Context) {
	respondError(context, http.StatusNotFound, fmt.Sprintf("Route %s not found", context.Request.URL.Path), nil)
}
