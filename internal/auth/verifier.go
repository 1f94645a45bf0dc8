package auth

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrParameterNotFound is returned by a ParameterStore for a missing name.
var ErrParameterNotFound = eris.New("auth: parameter not found")

// ParameterStore resolves named secrets.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// StaticParameterStore serves parameters from memory.
type StaticParameterStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStaticParameterStore copies values into a new store.
func NewStaticParameterStore(values map[string]string) *StaticParameterStore {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &StaticParameterStore{values: cp}
}

// GetParameter returns the value for name.
func (s *StaticParameterStore) GetParameter(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	if !ok {
		return "", eris.Wrapf(ErrParameterNotFound, "auth: get %s", name)
	}
	return v, nil
}

// Verifier is the server side of API mode: two parameter lookups and an
// equality check. It has no rate limiting or lockout.
type Verifier struct {
	params        ParameterStore
	usernameParam string
	passwordParam string
}

// NewVerifier creates a Verifier reading the expected pair from the named
// parameters.
func NewVerifier(params ParameterStore, usernameParam, passwordParam string) *Verifier {
	return &Verifier{params: params, usernameParam: usernameParam, passwordParam: passwordParam}
}

// Verify compares creds with the stored pair. Missing fields yield an
// invalid result; a lookup failure yields an error.
func (v *Verifier) Verify(ctx context.Context, creds Credentials) (Result, error) {
	if creds.Username == "" || creds.Password == "" {
		return Result{Message: MsgMissing}, nil
	}

	username, err := v.params.GetParameter(ctx, v.usernameParam)
	if err != nil {
		return Result{Message: MsgUnavailable}, eris.Wrap(err, "auth: lookup username")
	}
	password, err := v.params.GetParameter(ctx, v.passwordParam)
	if err != nil {
		return Result{Message: MsgUnavailable}, eris.Wrap(err, "auth: lookup password")
	}

	if equal(creds.Username, username) && equal(creds.Password, password) {
		return Result{Valid: true, Message: MsgSuccess}, nil
	}
	zap.L().Debug("auth: credential mismatch", zap.String("username", creds.Username))
	return Result{Message: MsgInvalid}, nil
}

// Check lets a Verifier back a Gate directly, so a server can log in its own
// operators without a network hop. Lookup errors are logged and fail closed.
func (v *Verifier) Check(ctx context.Context, creds Credentials) Result {
	res, err := v.Verify(ctx, creds)
	if err != nil {
		zap.L().Error("auth: verify", zap.Error(err))
	}
	return res
}
