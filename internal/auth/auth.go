// Package auth implements the dashboard's low-assurance login gate. It is a
// convenience check for internal deployments, not a security boundary: the
// authenticated flag is a plain value in the local store with no expiry.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Modes selectable through auth.mode.
const (
	ModeLocal = "local"
	ModeAPI   = "api"
	// ModeSSM checks credentials against the parameter store in-process.
	ModeSSM = "ssm"
)

// Response messages shared by the checkers and the /auth endpoint.
const (
	MsgSuccess       = "Authentication successful"
	MsgInvalid       = "Invalid credentials"
	MsgMissing       = "Username and password are required"
	MsgUnavailable   = "Authentication service unavailable"
	MsgNotConfigured = "Authentication is not configured"
)

const (
	authPath  = "/auth"
	userAgent = "diligence-dashboard/1.0"
)

// Credentials is a username/password pair. It is also the /auth request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is the outcome of a credential check. It is also the /auth response.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Checker validates credentials. Implementations never return an error;
// every failure is an invalid Result.
type Checker interface {
	Check(ctx context.Context, creds Credentials) Result
}

// LocalChecker compares against a fixed credential pair held in
// configuration. Only suitable for development builds.
type LocalChecker struct {
	Username string
	Password string
}

// Check compares creds against the configured pair without any I/O.
func (c LocalChecker) Check(_ context.Context, creds Credentials) Result {
	if c.Username == "" || c.Password == "" {
		zap.L().Error("auth: local credentials not configured")
		return Result{Message: MsgNotConfigured}
	}
	if equal(creds.Username, c.Username) && equal(creds.Password, c.Password) {
		return Result{Valid: true, Message: MsgSuccess}
	}
	return Result{Message: MsgInvalid}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Config selects and configures a Checker.
type Config struct {
	Mode     string
	Username string
	Password string
	APIBase  string

	// Params, UsernameParam and PasswordParam back ModeSSM.
	Params        ParameterStore
	UsernameParam string
	PasswordParam string
}

// NewChecker builds the checker for cfg.Mode. Unknown modes are an error.
func NewChecker(cfg Config, opts ...Option) (Checker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeLocal:
		return LocalChecker{Username: cfg.Username, Password: cfg.Password}, nil
	case ModeAPI:
		return NewAPIChecker(cfg.APIBase, opts...), nil
	case ModeSSM:
		if cfg.Params == nil {
			return nil, eris.New("auth: ssm mode requires a parameter store")
		}
		return NewVerifier(cfg.Params, cfg.UsernameParam, cfg.PasswordParam), nil
	default:
		return nil, eris.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
