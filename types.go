package tokenauth

import (
	"context"

	"github.com/MrEthical07/tokenauth/validation"
)

// Repository is the persistence contract for user records.
//
// Lookups that match nothing return ErrRecordNotFound. Implementations must be
// safe for concurrent use.
type Repository interface {
	Create(ctx context.Context, fields map[string]any) (Record, error)
	UpdateByID(ctx context.Context, id int64, fields map[string]any) (bool, error)
	FindByID(ctx context.Context, id int64) (Record, error)
	// FindByAttribute matches every attribute (AND).
	FindByAttribute(ctx context.Context, attrs map[string]any) (Record, error)
	// FindByCredentials matches any credential (OR) and every condition (AND).
	// A nil columns list selects every column.
	FindByCredentials(ctx context.Context, credentials, conditions map[string]any, columns []string) (Record, error)
	Table() string
	// Fillable lists the attributes Create and UpdateByID accept.
	Fillable() []string
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Cipher encrypts password reset tokens.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(token string) ([]byte, error)
}

// Validator checks request data against rules. Field failures come back as
// validation.Errors; the error result is reserved for infrastructure failures.
type Validator interface {
	Validate(ctx context.Context, data map[string]any, rules validation.Rules) (validation.Errors, error)
}

// MessageCatalog resolves user-facing messages by key.
type MessageCatalog interface {
	Message(key string) (string, bool)
}

// StatefulGuard is the session-backed login state used by SessionService.
// The session being acted on is identified through ctx.
type StatefulGuard interface {
	Login(ctx context.Context, user Record, remember bool) error
	Logout(ctx context.Context) error
	InvalidateSession(ctx context.Context) error
	RegenerateToken(ctx context.Context) (string, error)
}

// TokenPair is the token half of a login or refresh response.
type TokenPair struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
}

// LoginResult is returned by JWTService.Login.
type LoginResult struct {
	Item Record    `json:"item"`
	Auth TokenPair `json:"auth"`
}

// LoginRequest carries submitted credentials. Credentials is keyed by the
// configured username and password field names.
type LoginRequest struct {
	Credentials map[string]any
	// Conditions are extra equality filters ANDed into the lookup.
	Conditions map[string]any
	// OnResolved may replace the returned item. It receives the user without
	// the password and the jti shared by both issued tokens.
	OnResolved func(ctx context.Context, user Record, jti string) (Record, error)
}

// SessionLoginRequest is LoginRequest for SessionService.
type SessionLoginRequest struct {
	Credentials map[string]any
	Conditions  map[string]any
	Remember    bool
	OnResolved  func(ctx context.Context, user Record) error
}

// RegisterRequest carries registration fields. A nil Rules selects the
// default rule set.
type RegisterRequest struct {
	Fields    map[string]any
	Rules     validation.Rules
	OnCreated func(ctx context.Context, user Record) (Record, error)
}

// Attributes is the update set handed to ChangePasswordRequest.OnUpdate
// before it is persisted. The hook may add, change or remove entries.
type Attributes map[string]any

// ChangePasswordRequest selects the user by reset Token, by UserID, or both.
// With both, both checks must pass and the UserID path picks the user.
type ChangePasswordRequest struct {
	Password    string
	OldPassword string
	Token       string
	UserID      int64
	OnUpdate    func(ctx context.Context, user Record, attrs Attributes) error
}
