package accesscontrol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/account-service/internal/domain"
)

// AccessClaims is the decoded payload of an access token. Immutable once
// decoded; revocation and expiry policy are applied by TokenService, not here.
type AccessClaims struct {
	UserID    int64
	Role      domain.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims is the wire form. The registered ID claim (jti) carries the
// token identifier used for selective revocation.
type jwtClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens. It is stateless: Decode
// checks signature and structure only, leaving revocation and expiry to
// the stateful layer above.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec builds a codec signing with HS256.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Encode signs a fresh access token for the subject. Each call embeds a new
// cryptographically random token identifier; identifiers are never reused.
func (c *TokenCodec) Encode(userID int64, role domain.Role) (string, *AccessClaims, error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	expiresAt := now.Add(c.ttl)
	claims := &jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, err
	}

	return signed, &AccessClaims{
		UserID:    userID,
		Role:      role,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies signature and structure and returns the claims. Expiry is
// deliberately not enforced here so revocation flows can still decode stale
// tokens; callers check IsExpired separately.
func (c *TokenCodec) Decode(tokenStr string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return &AccessClaims{
		UserID:    userID,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IsExpired reports whether the claims' expiry lies in the past.
func (c *TokenCodec) IsExpired(claims *AccessClaims) bool {
	return time.Now().After(claims.ExpiresAt)
}

// newTokenID returns a 128-bit random identifier, hex encoded.
func newTokenID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
