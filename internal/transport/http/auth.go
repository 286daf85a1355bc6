package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"escape-room-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for identity tokens that fail verification.
var ErrInvalidToken = errors.New("invalid identity token")

type principalClaims struct {
	UID   string `json:"uid,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 identity tokens issued by the sign-in provider and turns
// them into the principal that pre-fills the entry form.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses raw and returns the principal it names. uid falls back to the subject.
func (v *TokenVerifier) Verify(raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, fmt.Errorf("%w: token is required", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims principalClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if strings.TrimSpace(uid) == "" {
		return domain.Identity{}, fmt.Errorf("%w: uid is required", ErrInvalidToken)
	}
	return domain.Identity{UID: uid, Email: claims.Email, Name: claims.Name}.Normalized(), nil
}

// Sign issues a token for principal that expires after ttl.
func (v *TokenVerifier) Sign(principal domain.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := principalClaims{
		UID:   principal.UID,
		Email: principal.Email,
		Name:  principal.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// tokenFromRequest reads a bearer token, or the token query parameter since browsers
// cannot set headers on a websocket handshake.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
