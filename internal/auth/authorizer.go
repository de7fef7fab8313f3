package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/storage"
)

const (
	contextKeyIdentity = "auth_identity"

	headerAuthorization = "Authorization"
	bearerPrefix        = "bearer "
	queryKeyToken       = "token"

	logEventResolveIdentity = "resolve_identity"
	logEventLogin           = "login"
	logEventRecordLogin     = "record_login"
)

var (
	// ErrAuthenticationRequired covers missing, malformed, expired and unknown credentials.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInsufficientPermission means the identity's role is outside the allowed set.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrInvalidCredentials rejects a login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Role  model.UserRole `json:"role"`
}

// UserLookup resolves token subjects to accounts.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (model.User, error)
}

// AuthorizerConfig wires an Authorizer. Tokens and Users may be nil when Enforce is false.
type AuthorizerConfig struct {
	Enforce bool
	Tokens  *Tokens
	Users   UserLookup
	Logger  *zap.Logger
}

// Authorizer gates routes on bearer tokens. With Enforce off every check passes and no identity is attached.
type Authorizer struct {
	enforce bool
	tokens  *Tokens
	users   UserLookup
	logger  *zap.Logger
}

func NewAuthorizer(configuration AuthorizerConfig) *Authorizer {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{
		enforce: configuration.Enforce,
		tokens:  configuration.Tokens,
		users:   configuration.Users,
		logger:  logger,
	}
}

// Enforcing reports whether credentials are checked.
func (authorizer *Authorizer) Enforcing() bool {
	return authorizer.enforce
}

// Require rejects requests without a resolvable identity, and identities whose role is not listed.
// An empty role list admits any authenticated identity.
func (authorizer *Authorizer) Require(roles ...model.UserRole) gin.HandlerFunc {
	allowed := make(map[model.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(context *gin.Context) {
		if !authorizer.enforce {
			context.Next()
			return
		}
		identity, err := authorizer.Resolve(context.Request.Context(), context.Request)
		if err != nil {
			_ = context.Error(err)
			context.Abort()
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[identity.Role]; !ok {
				_ = context.Error(ErrInsufficientPermission)
				context.Abort()
				return
			}
		}
		context.Set(contextKeyIdentity, identity)
		context.Next()
	}
}

// Optional attaches the identity when one resolves and never rejects.
func (authorizer *Authorizer) Optional() gin.HandlerFunc {
	return func(context *gin.Context) {
		if authorizer.enforce && Credential(context.Request) != "" {
			if identity, err := authorizer.Resolve(context.Request.Context(), context.Request); err == nil {
				context.Set(contextKeyIdentity, identity)
			}
		}
		context.Next()
	}
}

// Resolve turns the request credential into an active account identity.
func (authorizer *Authorizer) Resolve(ctx context.Context, request *http.Request) (Identity, error) {
	credential := Credential(request)
	if credential == "" {
		return Identity{}, ErrAuthenticationRequired
	}
	if authorizer.tokens == nil || authorizer.users == nil {
		return Identity{}, ErrAuthenticationRequired
	}
	subject, verifyErr := authorizer.tokens.Verify(credential)
	if verifyErr != nil {
		authorizer.logger.Debug(logEventResolveIdentity, zap.Error(verifyErr))
		return Identity{}, ErrAuthenticationRequired
	}
	user, lookupErr := authorizer.users.GetUser(ctx, subject)
	if lookupErr != nil {
		if !errors.Is(lookupErr, storage.ErrNotFound) {
			authorizer.logger.Warn(logEventResolveIdentity, zap.String("user_id", subject), zap.Error(lookupErr))
		}
		return Identity{}, ErrAuthenticationRequired
	}
	if !user.IsActive {
		return Identity{}, ErrAuthenticationRequired
	}
	return IdentityOf(user), nil
}

// Credential extracts the bearer token from the Authorization header or the token query parameter.
func Credential(request *http.Request) string {
	header := strings.TrimSpace(request.Header.Get(headerAuthorization))
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return strings.TrimSpace(request.URL.Query().Get(queryKeyToken))
}

// IdentityOf projects an account onto the request identity.
func IdentityOf(user model.User) Identity {
	return Identity{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
}

func IdentityFromContext(context *gin.Context) (Identity, bool) {
	value, exists := context.Get(contextKeyIdentity)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// ActorID names who is acting on the request: the identity id, or the system actor when none is attached.
func ActorID(context *gin.Context) string {
	if identity, ok := IdentityFromContext(context); ok && identity.ID != "" {
		return identity.ID
	}
	return model.SystemActor
}

// LoginStore is the account persistence used by Login.
type LoginStore interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	RecordUserLogin(ctx context.Context, id string, at time.Time) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Identity  `json:"user"`
}

// Accounts exchanges email and password for a signed token.
type Accounts struct {
	store  LoginStore
	tokens *Tokens
	logger *zap.Logger
	clock  func() time.Time
}

func NewAccounts(store LoginStore, tokens *Tokens, logger *zap.Logger) *Accounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accounts{store: store, tokens: tokens, logger: logger, clock: time.Now}
}

// Login verifies the password of an active account and issues a token.
func (accounts *Accounts) Login(ctx context.Context, email string, password string) (Session, error) {
	if accounts.tokens == nil {
		return Session{}, ErrMissingSecret
	}
	user, lookupErr := accounts.store.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, lookupErr
	}
	if !user.IsActive || !user.PasswordMatches(password) {
		accounts.logger.Info(logEventLogin, zap.String("user_id", user.ID), zap.Bool("success", false))
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, issueErr := accounts.tokens.Issue(user)
	if issueErr != nil {
		return Session{}, issueErr
	}
	if recordErr := accounts.store.RecordUserLogin(ctx, user.ID, accounts.clock().UTC()); recordErr != nil {
		accounts.logger.Warn(logEventRecordLogin, zap.String("user_id", user.ID), zap.Error(recordErr))
	}
	accounts.logger.Info(logEventLogin, zap.String("user_id", user.ID), zap.Bool("success", true))
	return Session{Token: token, ExpiresAt: expiresAt, User: IdentityOf(user)}, nil
}
