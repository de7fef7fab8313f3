package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const messageLoggedIn = "Login successful."

// AuthHandlers exchanges credentials for bearer tokens.
type AuthHandlers struct {
	accounts  *auth.Accounts
	validator *validation.Validator
	logger    *zap.Logger
}

func NewAuthHandlers(accounts *auth.Accounts, validator *validation.Validator, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &AuthHandlers{accounts: accounts, validator: validator, logger: logger}
}

func (handlers *AuthHandlers) Login(context *gin.Context) {
	var request loginRequest
	if err := bindRequest(context, handlers.validator, &request); err != nil {
		_ = context.Error(err)
		return
	}
	session, err := handlers.accounts.Login(context.Request.Context(), request.Email, request.Password)
	if err != nil {
		_ = context.Error(err)
		return
	}
	respondSuccess(context, http.StatusOK, messageLoggedIn, session)
}

// Me reports the identity attached by the authorizer. Requests without one, including bypass mode, get 401.
func (handlers *AuthHandlers) Me(context *gin.Context) {
	identity, ok := auth.IdentityFromContext(context)
	if !ok {
		_ = context.Error(auth.ErrAuthenticationRequired)
		return
	}
	respondSuccess(context, http.StatusOK, "", gin.H{"user": identity})
}
