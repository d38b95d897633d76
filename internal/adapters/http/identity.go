package httpadapter

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

const issuer = "chat-relay"

type identityCtxKey struct{}

// IdentityConfig controls the session cookie carrying the caller identity.
type IdentityConfig struct {
	CookieName string
	Secret     []byte
	TTL        time.Duration
	Secure     bool
}

// NewSecret returns a random signing key for when none is configured.
func NewSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	return b, nil
}

// IdentityFromContext returns the caller identity set by withIdentity.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(domain.Identity)
	return id, ok && id != ""
}

type identityIssuer struct {
	cfg IdentityConfig
	now func() time.Time
}

func newIdentityIssuer(cfg IdentityConfig) *identityIssuer {
	if cfg.CookieName == "" {
		cfg.CookieName = "relay_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &identityIssuer{cfg: cfg, now: time.Now}
}

func (ii *identityIssuer) sign(id domain.Identity) (string, error) {
	now := ii.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   string(id),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ii.cfg.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ii.cfg.Secret)
}

func (ii *identityIssuer) parse(token string) (domain.Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return ii.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ii.now),
	)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("session subject is not a uuid")
	}
	return domain.Identity(claims.Subject), nil
}

// withIdentity resolves the caller identity from the session cookie, minting
// a new one when the cookie is missing, expired, or forged. Every response
// refreshes the cookie so activity slides the expiry forward.
func (ii *identityIssuer) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id domain.Identity
		if c, err := r.Cookie(ii.cfg.CookieName); err == nil {
			id, _ = ii.parse(c.Value)
		}
		if id == "" {
			id = domain.Identity(uuid.NewString())
		}

		token, err := ii.sign(id)
		if err != nil {
			writeReply(w, http.StatusInternalServerError, msgInternal)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     ii.cfg.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(ii.cfg.TTL.Seconds()),
			HttpOnly: true,
			Secure:   ii.cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), identityCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
