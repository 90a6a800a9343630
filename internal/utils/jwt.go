package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/altamontana/booking-api/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Admin tokens are long-lived (days) because the panel has no refresh flow;
// the token is re-issued on every profile update.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims are the custom claims carried by admin tokens.  Subject holds the
// user id in decimal.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccessClaims is the validated view of a token handed to middleware.
type AccessClaims struct {
	UserID uint64
	Name   string
	Role   string
}

// NewAccessToken builds and signs an HS256 JWT for u that expires after
// ttlDays.  It sets sub, name, role, iss, iat and exp.
func NewAccessToken(secret, issuer string, u model.User, ttlDays int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := Claims{
		Name: u.Username,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature (HS256 only), expiry and issuer and
// returns the claims.
func ParseAccessToken(secret, issuer, raw string) (AccessClaims, error) {
	var claims Claims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return AccessClaims{}, err
	}
	if !tok.Valid {
		return AccessClaims{}, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return AccessClaims{}, errors.New("invalid subject")
	}
	return AccessClaims{UserID: id, Name: claims.Name, Role: claims.Role}, nil
}
