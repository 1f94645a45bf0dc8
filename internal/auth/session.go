package auth

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-dashboard/internal/store"
)

// Status is the login state. The only transitions are sign-in and sign-out.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

type sessionState struct {
	Status   Status `json:"status"`
	Username string `json:"username,omitempty"`
}

// Session remembers the login state in the store under store.KeyAuth.
type Session struct {
	mu    sync.RWMutex
	store store.Store
	state sessionState
}

// NewSession creates an unauthenticated session backed by s.
func NewSession(s store.Store) *Session {
	return &Session{store: s, state: sessionState{Status: StatusUnauthenticated}}
}

// Load reads the persisted state. Anything unreadable is unauthenticated.
func (s *Session) Load(ctx context.Context) error {
	var st sessionState
	found, err := store.GetJSON(ctx, s.store, store.KeyAuth, &st)
	if err != nil && !eris.Is(err, store.ErrDecode) {
		return eris.Wrap(err, "auth: load session")
	}
	if !found || err != nil || st.Status != StatusAuthenticated {
		st = sessionState{Status: StatusUnauthenticated}
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Status returns the current login state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// Authenticated reports whether the session is signed in.
func (s *Session) Authenticated() bool {
	return s.Status() == StatusAuthenticated
}

// Username returns the signed-in user, or "".
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Username
}

// SignIn marks the session authenticated and persists it.
func (s *Session) SignIn(ctx context.Context, username string) error {
	return s.set(ctx, sessionState{Status: StatusAuthenticated, Username: username})
}

// SignOut returns the session to unauthenticated and removes the stored flag.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, store.KeyAuth); err != nil {
		return eris.Wrap(err, "auth: clear session")
	}
	s.state = sessionState{Status: StatusUnauthenticated}
	return nil
}

func (s *Session) set(ctx context.Context, st sessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := store.SetJSON(ctx, s.store, store.KeyAuth, st); err != nil {
		return eris.Wrap(err, "auth: save session")
	}
	s.state = st
	return nil
}

// Gate runs a Checker and records successful logins in a Session.
type Gate struct {
	checker Checker
	session *Session
}

// NewGate creates a Gate.
func NewGate(checker Checker, session *Session) *Gate {
	return &Gate{checker: checker, session: session}
}

// Login checks creds. Empty fields are rejected before the checker runs.
// The error is non-nil only when a successful login could not be persisted.
func (g *Gate) Login(ctx context.Context, creds Credentials) (Result, error) {
	if creds.Username == "" || creds.Password == "" {
		return Result{Message: MsgMissing}, nil
	}
	res := g.checker.Check(ctx, creds)
	if !res.Valid {
		return res, nil
	}
	if err := g.session.SignIn(ctx, creds.Username); err != nil {
		return Result{Message: MsgUnavailable}, err
	}
	return res, nil
}

// Logout signs the session out.
func (g *Gate) Logout(ctx context.Context) error {
	return g.session.SignOut(ctx)
}

// Session returns the gate's session.
func (g *Gate) Session() *Session {
	return g.session
}
