package apiclient

import (
	"net/http"
	"sync"
	"time"
)

// Session is the client side of a signed-in session: the identity the user
// signed in with and the cookies the gateway handed out. The gateway owns
// the cookie values; the session only stores what Set-Cookie told it and
// sends it back. A Session is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	email   string
	cookies map[string]storedCookie
	now     func() time.Time
}

type storedCookie struct {
	value   string
	expires time.Time
}

// State is the persistable form of a Session.
type State struct {
	Email   string         `json:"email" yaml:"email"`
	Cookies []StoredCookie `json:"cookies" yaml:"cookies"`
}

type StoredCookie struct {
	Name    string    `json:"name" yaml:"name"`
	Value   string    `json:"value" yaml:"value"`
	Expires time.Time `json:"expires,omitzero" yaml:"expires,omitempty"`
}

func NewSession() *Session {
	return &Session{
		cookies: make(map[string]storedCookie),
		now:     time.Now,
	}
}

// RestoreSession rebuilds a session from a previously taken snapshot.
// Cookies that expired in the meantime are dropped.
func RestoreSession(state State) *Session {
	s := NewSession()
	s.email = state.Email

	now := s.now()
	for _, c := range state.Cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}

		s.cookies[c.Name] = storedCookie{value: c.Value, expires: c.Expires}
	}

	return s
}

// Begin starts a new session for the given identity, discarding whatever
// the previous one held.
func (s *Session) Begin(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email = email
	clear(s.cookies)
}

// SetEmail records the identity the session belongs to and keeps its cookies.
func (s *Session) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email = email
}

// End destroys the session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email = ""
	clear(s.cookies)
}

func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.email
}

// Active reports whether the session holds at least one live cookie.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropExpiredLocked()

	return len(s.cookies) > 0
}

// Cookie returns the value of a live cookie.
func (s *Session) Cookie(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropExpiredLocked()
	c, ok := s.cookies[name]

	return c.value, ok
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropExpiredLocked()

	state := State{Email: s.email, Cookies: make([]StoredCookie, 0, len(s.cookies))}
	for name, c := range s.cookies {
		state.Cookies = append(state.Cookies, StoredCookie{Name: name, Value: c.value, Expires: c.expires})
	}

	return state
}

// attach adds the live cookies to an outgoing request.
func (s *Session) attach(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropExpiredLocked()

	for name, c := range s.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: c.value})
	}
}

// absorb applies the Set-Cookie headers of a response. This is how tokens
// get rotated on refresh and cleared on logout.
func (s *Session) absorb(resp *http.Response) {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, c := range cookies {
		switch {
		case c.MaxAge < 0:
			delete(s.cookies, c.Name)
		case c.MaxAge > 0:
			s.cookies[c.Name] = storedCookie{value: c.Value, expires: now.Add(time.Duration(c.MaxAge) * time.Second)}
		case !c.Expires.IsZero() && !c.Expires.After(now):
			delete(s.cookies, c.Name)
		default:
			s.cookies[c.Name] = storedCookie{value: c.Value, expires: c.Expires}
		}
	}
}

func (s *Session) dropExpiredLocked() {
	now := s.now()
	for name, c := range s.cookies {
		if !c.expires.IsZero() && !c.expires.After(now) {
			delete(s.cookies, name)
		}
	}
}
