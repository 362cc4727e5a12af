package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/odvcencio/songlist/internal/models"
)

var (
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidState    = errors.New("invalid oauth state")
)

// Claims is the payload of a session token. SessionID names the server-side
// session; the token is only honored while that session exists.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    int64  `json:"user_id"`
	jwt.RegisteredClaims
}

// stateClaims is the payload of the short-lived OAuth state cookie.
type stateClaims struct {
	Nonce    string `json:"nonce"`
	Provider string `json:"provider"`
	ReturnTo string `json:"return_to,omitempty"`
	jwt.RegisteredClaims
}

const stateTTL = 10 * time.Minute

type Service struct {
	secret []byte
	ttl    time.Duration
	store  SessionStore
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration, store SessionStore) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}
}

func (s *Service) TTL() time.Duration { return s.ttl }

// HashSessionID is the at-rest form of a session id.
func HashSessionID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// CreateSession persists a new session for userID and returns the signed
// token that refers to it.
func (s *Service) CreateSession(ctx context.Context, userID int64) (string, *models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, HashSessionID(sess.ID), sess); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	claims := &Claims{
		SessionID: sess.ID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// ValidateToken checks the signature and expiry of a session token without
// consulting the session store.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Resolve validates tokenStr and confirms its session is still live.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, HashSessionID(claims.SessionID))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if sess.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}
	if sess.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// Revoke deletes the session behind tokenStr. Expired tokens can still be
// revoked.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || claims.SessionID == "" {
		return ErrInvalidToken
	}
	return s.store.Delete(ctx, HashSessionID(claims.SessionID))
}

// SweepExpired removes sessions whose expiry has passed.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// IssueState returns a random nonce for the provider round trip and a signed
// cookie value binding it to provider and returnTo.
func (s *Service) IssueState(provider, returnTo string) (nonce, cookie string, err error) {
	now := s.now()
	nonce = uuid.NewString()
	claims := &stateClaims{
		Nonce:    nonce,
		Provider: provider,
		ReturnTo: returnTo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	cookie, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return nonce, cookie, nil
}

// VerifyState checks the state cookie against the nonce echoed back by the
// provider and returns the stored return path.
func (s *Service) VerifyState(cookie, provider, nonce string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(cookie, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidState
	}
	if nonce == "" || claims.Nonce != nonce || claims.Provider != provider {
		return "", ErrInvalidState
	}
	return claims.ReturnTo, nil
}
