package service

import (
	"context"

	"webstack/internal/entity"

	"github.com/sirupsen/logrus"
)

// AuthContext holds the per-request authentication state. It is not safe for concurrent use.
type AuthContext struct {
	ctx         context.Context
	codec       *TokenCodec
	cookies     CookieJar
	fingerprint func() entity.Fingerprint
	logger      logrus.FieldLogger

	token *AuthToken
	user  *entity.User
}

func NewAuthContext(ctx context.Context, codec *TokenCodec, cookies CookieJar, fingerprint func() entity.Fingerprint, logger logrus.FieldLogger) *AuthContext {
	return &AuthContext{
		ctx:         ctx,
		codec:       codec,
		cookies:     cookies,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

func (a *AuthContext) Logger() logrus.FieldLogger {
	return a.logger
}

func (a *AuthContext) Fingerprint() entity.Fingerprint {
	if a.fingerprint == nil {
		return entity.Fingerprint{}
	}
	return a.fingerprint()
}

// AuthToken decodes the request cookies once and returns the cached result afterwards.
func (a *AuthContext) AuthToken() AuthToken {
	if a.token == nil {
		t := a.codec.Decode(a.ctx, a.cookies, a.logger)
		a.token = &t
	}
	return *a.token
}

// SetAuthToken replaces the cached token and writes it to the response cookies.
func (a *AuthContext) SetAuthToken(t AuthToken) error {
	if err := a.SendAuthToken(t); err != nil {
		return err
	}
	a.token = &t
	return nil
}

// SendAuthToken writes t to the response cookies without touching the cached token.
func (a *AuthContext) SendAuthToken(t AuthToken) error {
	return a.codec.Encode(t, a.cookies)
}
