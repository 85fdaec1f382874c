package service

import (
	"context"
	"encoding/json"
	"net/http"

	"webstack/internal/metrics"
	"webstack/internal/utils"

	"github.com/sirupsen/logrus"
)

// AuthToken is the authentication state carried by the device and session cookies.
// SessionID, UserID and AccessToken are either all set or all empty.
type AuthToken struct {
	DeviceID    string   `json:"id,omitempty"`
	SessionID   string   `json:"session,omitempty"`
	UserID      string   `json:"user,omitempty"`
	Permissions []string `json:"allows,omitempty"`
	AccessToken string   `json:"token,omitempty"`
}

func (t AuthToken) Authenticated() bool {
	return t.SessionID != "" && t.UserID != "" && t.AccessToken != ""
}

type CookieReader interface {
	Cookie(name string) (*http.Cookie, error)
}

type CookieWriter interface {
	SetCookie(cookie *http.Cookie)
}

// CookieJar is satisfied by echo.Context.
type CookieJar interface {
	CookieReader
	CookieWriter
}

// TokenCodec reads and writes AuthTokens as two independently signed cookies.
type TokenCodec struct {
	device        CookieConfig
	session       CookieConfig
	deviceSigner  utils.CookieSigner
	sessionSigner utils.CookieSigner
	metrics       *metrics.Recorder
}

func NewTokenCodec(device, session CookieConfig, recorder *metrics.Recorder) *TokenCodec {
	return &TokenCodec{
		device:        device,
		session:       session,
		deviceSigner:  utils.CookieSigner{Secret: []byte(device.Secret), Timestamp: true},
		sessionSigner: utils.CookieSigner{Secret: []byte(session.Secret)},
		metrics:       recorder,
	}
}

// Decode never fails. Missing cookies yield an anonymous token and tampered
// cookies are logged and ignored.
func (c *TokenCodec) Decode(ctx context.Context, cookies CookieReader, logger logrus.FieldLogger) AuthToken {
	var auth AuthToken

	deviceCookie, err := cookies.Cookie(c.device.Name)
	if err != nil || deviceCookie.Value == "" {
		return auth
	}
	tuple, err := c.deviceSigner.Verify(deviceCookie.Value)
	if err == nil && len(tuple) > 0 {
		err = json.Unmarshal(tuple[0], &auth.DeviceID)
	}
	if err != nil || auth.DeviceID == "" {
		logger.WithFields(logrus.Fields{
			"cookie":    deviceCookie.Value,
			"intrusion": true,
		}).WithError(err).Warn("[INTRUSION DETECTED] User sent invalid device id")
		c.metrics.Intrusion(ctx, metrics.IntrusionDeviceCookie)
		return AuthToken{}
	}

	sessionCookie, err := cookies.Cookie(c.session.Name)
	if err != nil || sessionCookie.Value == "" {
		return auth
	}
	session, err := c.decodeSession(sessionCookie.Value)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"cookie":    sessionCookie.Value,
			"intrusion": true,
		}).WithError(err).Warn("[INTRUSION DETECTED] User sent invalid auth token")
		c.metrics.Intrusion(ctx, metrics.IntrusionSessionCookie)
		return auth
	}
	session.DeviceID = auth.DeviceID
	return session
}

func (c *TokenCodec) decodeSession(value string) (AuthToken, error) {
	var auth AuthToken
	tuple, err := c.sessionSigner.Verify(value)
	if err != nil {
		return auth, err
	}
	if len(tuple) != 4 {
		return auth, utils.ErrInvalidToken
	}
	for i, dst := range []any{&auth.SessionID, &auth.UserID, &auth.Permissions, &auth.AccessToken} {
		if err := json.Unmarshal(tuple[i], dst); err != nil {
			return AuthToken{}, err
		}
	}
	if !auth.Authenticated() {
		return AuthToken{}, utils.ErrInvalidToken
	}
	if auth.Permissions == nil {
		auth.Permissions = []string{}
	}
	return auth, nil
}

// Encode writes the device cookie when a device id is present and the session
// cookie when the token is authenticated. Otherwise the session cookie is cleared.
func (c *TokenCodec) Encode(auth AuthToken, w CookieWriter) error {
	if auth.DeviceID != "" {
		value, err := c.deviceSigner.Sign(auth.DeviceID)
		if err != nil {
			return err
		}
		w.SetCookie(c.cookie(c.device, value))
	}

	if auth.SessionID == "" {
		expired := c.cookie(c.session, "")
		expired.MaxAge = -1
		w.SetCookie(expired)
		return nil
	}

	permissions := auth.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	value, err := c.sessionSigner.Sign(auth.SessionID, auth.UserID, permissions, auth.AccessToken)
	if err != nil {
		return err
	}
	w.SetCookie(c.cookie(c.session, value))
	return nil
}

func (c *TokenCodec) cookie(cfg CookieConfig, value string) *http.Cookie {
	path := cfg.Path
	if path == "" {
		path = "/api"
	}
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    value,
		Path:     path,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
