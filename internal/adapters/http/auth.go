package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/transithub/metrodms/internal/core/domain"
)

type identityContextKey struct{}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}

// Authenticator validates bearer tokens and attaches the caller identity
// to the request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

type accessClaims struct {
	Department string `json:"department"`
	Role       string `json:"role"`
	Active     bool   `json:"active"`
	jwt.RegisteredClaims
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identityFromRequest(r)
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "authenticate", err))
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) identityFromRequest(r *http.Request) (domain.Identity, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return domain.Identity{}, errMissingToken
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigning
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Identity{}, errInvalidToken
	}
	if !claims.Active {
		return domain.Identity{}, errInactiveUser
	}

	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleStaff
	}
	return domain.Identity{
		Subject:    claims.Subject,
		Department: claims.Department,
		Role:       role,
		Active:     claims.Active,
	}, nil
}

var (
	errMissingToken      = errors.New("missing bearer token")
	errUnexpectedSigning = errors.New("unexpected signing method")
	errInvalidToken      = errors.New("invalid token")
	errInactiveUser      = errors.New("user is inactive")
)
