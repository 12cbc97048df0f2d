// Package session carries the current-user identity as an explicit
// value instead of ambient global state. Handlers derive an Identity
// from the request token; the Provider notifies listeners on sign-in
// and sign-out with the same contract the rest of the app uses for
// live subscriptions.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pixelfeed/globals"
	"pixelfeed/middleware"
)

const TokenTTL = 24 * time.Hour

// Identity is the opaque current-user identity: who is acting, never
// what they may do.
type Identity struct {
	UID      string `json:"uid"`
	UserName string `json:"userName"`
	PhotoURL string `json:"photoURL,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Listener receives the new identity on sign-in, nil on sign-out.
type Listener func(*Identity)

type Provider struct {
	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]Listener)}
}

// OnAuthStateChanged registers a listener. The returned func removes
// it; afterwards the listener is never invoked again.
func (p *Provider) OnAuthStateChanged(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) SignedIn(ident Identity) {
	p.notify(&ident)
}

func (p *Provider) SignedOut() {
	p.notify(nil)
}

func (p *Provider) notify(ident *Identity) {
	p.mu.Lock()
	fns := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ident)
	}
}

// IssueToken signs a JWT carrying the identity.
func IssueToken(ident Identity) (string, error) {
	claims := &middleware.Claims{
		Username: ident.UserName,
		UserID:   ident.UID,
		PhotoURL: ident.PhotoURL,
		Email:    ident.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(globals.JwtSecret)
}

// FromRequest derives the acting identity from the request's bearer
// token. The zero Identity means no signed-in user.
func FromRequest(r *http.Request) Identity {
	claims, err := middleware.ValidateJWT(r.Header.Get("Authorization"))
	if err != nil {
		return Identity{}
	}
	return Identity{
		UID:      claims.UserID,
		UserName: claims.Username,
		PhotoURL: claims.PhotoURL,
		Email:    claims.Email,
	}
}
