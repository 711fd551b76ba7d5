// Package auth mints and validates session tokens and hashes user
// passwords. Permissions are never trusted from the token itself: every
// validation re-reads the live permission set from the user store so a
// permission change takes effect on the next request instead of waiting
// for the token to expire.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuthenticationFailed is returned for both an unknown username and a
// wrong password. The two cases are deliberately indistinguishable to a
// caller: a distinct "user not found" error turns login into a username
// oracle.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ErrTokenRevoked is returned by ValidateToken for a token whose jti has
// been revoked.
var ErrTokenRevoked = errors.New("token has been revoked")

// dummyHash is compared against on an unknown username so that
// Authenticate takes roughly the same time whether or not the username
// exists.
var dummyHash = mustHash("not-a-real-password-used-only-for-timing")

func mustHash(password string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}

// user is one registered account.
type user struct {
	username     string
	passwordHash []byte
	permissions  []string
}

// Claims are the JWT claims minted for a session token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Info is what a caller learns from a validated token: the identity and
// the live permission set, never the permissions baked into the token.
type Info struct {
	Username    string
	Permissions []string
	ExpiresAt   time.Time
}

// Manager hashes passwords, mints and validates tokens, and tracks
// revocation. The signing secret is generated once per Manager instance
// and never persisted or shared across instances.
type Manager struct {
	mu      sync.RWMutex
	users   map[string]*user
	revoked map[string]struct{}
	secret  []byte
}

// New returns a Manager with a freshly generated 256-bit signing secret.
func New() (*Manager, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	return &Manager{
		users:   make(map[string]*user),
		revoked: make(map[string]struct{}),
		secret:  secret,
	}, nil
}

// AddUser registers an account with a bcrypt-hashed password.
func (m *Manager) AddUser(username, password string, permissions []string) error {
	if username == "" {
		return errors.New("username must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = &user{
		username:     username,
		passwordHash: hash,
		permissions:  append([]string(nil), permissions...),
	}
	return nil
}

// Authenticate checks a username/password pair and, on success, mints a
// token valid for ttl.
func (m *Manager) Authenticate(username, password string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	u, ok := m.users[username]
	m.mu.RUnlock()

	hash := dummyHash
	if ok {
		hash = u.passwordHash
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || !ok {
		return "", ErrAuthenticationFailed
	}

	return m.issueToken(username, ttl)
}

func (m *Manager) issueToken(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateToken verifies signature and expiry, rejects a revoked jti, and
// returns the user's current permission set read live from the user
// store.
func (m *Manager) ValidateToken(tokenString string) (Info, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return Info{}, err
	}

	m.mu.RLock()
	_, isRevoked := m.revoked[claims.ID]
	u, known := m.users[claims.Username]
	m.mu.RUnlock()

	if isRevoked {
		return Info{}, ErrTokenRevoked
	}
	if !known {
		return Info{}, ErrAuthenticationFailed
	}

	return Info{
		Username:    u.username,
		Permissions: append([]string(nil), u.permissions...),
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Refresh mints a new token for the same user without revoking the old
// one; the old token remains valid until it expires or is revoked
// separately.
func (m *Manager) Refresh(tokenString string, ttl time.Duration) (string, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	_, isRevoked := m.revoked[claims.ID]
	_, known := m.users[claims.Username]
	m.mu.RUnlock()
	if isRevoked {
		return "", ErrTokenRevoked
	}
	if !known {
		return "", ErrAuthenticationFailed
	}
	return m.issueToken(claims.Username, ttl)
}

// Revoke parses a token for its jti and adds it to the revocation set.
// The token's own expiry is ignored: an expired token's jti can still be
// revoked so a replay can never succeed even under clock skew.
func (m *Manager) Revoke(tokenString string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[claims.ID] = struct{}{}
	return nil
}
