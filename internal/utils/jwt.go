package utils

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const payloadVersion = 1

// CookieClaims carries a positional tuple signed into a cookie value.
type CookieClaims struct {
	Tuple   []json.RawMessage `json:"t"`
	Version int               `json:"v"`
	jwt.RegisteredClaims
}

// CookieSigner signs and verifies cookie payloads with HS256.
type CookieSigner struct {
	Secret []byte
	// Timestamp controls whether signed payloads carry an iat claim.
	Timestamp bool
}

func (s CookieSigner) Sign(values ...any) (string, error) {
	tuple := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		tuple = append(tuple, b)
	}
	claims := CookieClaims{Tuple: tuple, Version: payloadVersion}
	if s.Timestamp {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify checks the signature and version of value and returns its tuple.
func (s CookieSigner) Verify(value string) ([]json.RawMessage, error) {
	parsed, err := jwt.ParseWithClaims(value, &CookieClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*CookieClaims)
	if !ok || !parsed.Valid || claims.Version != payloadVersion {
		return nil, ErrInvalidToken
	}
	return claims.Tuple, nil
}
