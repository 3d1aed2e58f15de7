package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is written to the iss claim of every token.
const Issuer = "healthcare-coordination"

var (
	// ErrTokenExpired is returned when a correctly signed token is past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: bad signature,
	// wrong algorithm, malformed token or missing claims.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the identity carried by access and refresh tokens.
type Claims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// IssueToken signs claims with HS256.  Subject, issued-at, expiry, issuer
// and a random token id are filled in here; any registered claims already
// set on the argument are overwritten.
func IssueToken(claims Claims, secret string, ttl time.Duration) (SignedToken, error) {
	if secret == "" {
		return SignedToken{}, errors.New("empty signing secret")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   strconv.FormatUint(claims.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses raw and checks its signature against secret before
// checking expiry.  The result is either the decoded claims, ErrTokenExpired
// or ErrTokenInvalid.
func VerifyToken(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.UserID == 0 || claims.Role == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TokenIssuer holds the two signing secrets and lifetimes.  Access and
// refresh tokens are signed with different secrets so one kind can never be
// accepted in place of the other.
type TokenIssuer struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer validates the secrets and returns a TokenIssuer.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

func (i *TokenIssuer) IssueAccess(c Claims) (SignedToken, error) {
	return IssueToken(c, i.accessSecret, i.accessTTL)
}

func (i *TokenIssuer) IssueRefresh(c Claims) (SignedToken, error) {
	return IssueToken(c, i.refreshSecret, i.refreshTTL)
}

func (i *TokenIssuer) VerifyAccess(raw string) (*Claims, error) {
	return VerifyToken(raw, i.accessSecret)
}

func (i *TokenIssuer) VerifyRefresh(raw string) (*Claims, error) {
	return VerifyToken(raw, i.refreshSecret)
}
