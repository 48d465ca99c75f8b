package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token is malformed, expired, or otherwise invalid.
// Callers must treat it as "unauthenticated", never as a server error.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds JWT claims for the access token. Subject is the user id.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// RefreshClaims holds JWT claims for the refresh token. The jti is the rotating
// refresh-credential id stored on the session.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// TokenProvider issues and decodes JWT access and refresh tokens using RS256 or
// ES256 (private/public key). Decoding is pure and does no I/O.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key
// (RS256 or ES256). issuer and audience are set on claims and checked on decode.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given session and user.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(sessionID, userID string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token and its jti.
// The jti identifies the refresh credential; callers store it on the session so
// rotation can prove possession of the current one.
func (p *TokenProvider) IssueRefresh(sessionID, userID string) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// DecodeAccess parses and validates an access token (signature, exp, iss, aud)
// and returns the user id, session id, and token expiry. Any failure yields
// ErrInvalidToken with no further detail.
func (p *TokenProvider) DecodeAccess(tokenString string) (userID, sessionID string, expiresAt time.Time, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", time.Time{}, ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return "", "", time.Time{}, err
	}
	if claims.Subject == "" || claims.SessionID == "" || claims.ExpiresAt == nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	return claims.Subject, claims.SessionID, claims.ExpiresAt.Time, nil
}

// DecodeRefresh parses and validates a refresh token and returns the session id,
// refresh-credential id (jti), and user id.
func (p *TokenProvider) DecodeRefresh(tokenString string) (sessionID, jti, userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return "", "", "", ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return "", "", "", err
	}
	if claims.SessionID == "" || claims.ID == "" {
		return "", "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.ID, claims.Subject, nil
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

func (p *TokenProvider) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != p.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrInvalidToken
}
