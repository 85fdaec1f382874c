package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webstack/internal/database"
	"webstack/internal/service"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

func TestRequestIDFormat(t *testing.T) {
	now := time.UnixMilli(0x18c2f4a1b2c)
	id := requestID("10.0.0.7:53211", now)

	parts := strings.Split(id, "/")
	if len(parts) != 4 {
		t.Fatalf("request id %q has %d parts, want 4", id, len(parts))
	}
	if parts[0] != "REQ" {
		t.Errorf("prefix = %q, want REQ", parts[0])
	}
	if len(parts[1]) != 36 {
		t.Errorf("uuid part = %q", parts[1])
	}
	if parts[2] != "53211" {
		t.Errorf("port = %q, want 53211", parts[2])
	}
	if parts[3] != "18C2F4A1B2C" {
		t.Errorf("timestamp = %q, want 18C2F4A1B2C", parts[3])
	}
	if strings.ToUpper(id) != id {
		t.Errorf("request id %q is not upper case", id)
	}
	if requestID("10.0.0.7:53211", now) == id {
		t.Error("request ids repeat")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		cf, xff, remote, want string
	}{
		{"203.0.113.9", "198.51.100.1", "10.0.0.1:80", "203.0.113.9"},
		{"", "198.51.100.1, 10.1.1.1", "10.0.0.1:80", "198.51.100.1"},
		{"", "", "10.0.0.1:80", "10.0.0.1"},
		{"", "", "unix", "unix"},
	}
	for _, tc := range cases {
		if got := clientIP(tc.cf, tc.xff, tc.remote); got != tc.want {
			t.Errorf("clientIP(%q, %q, %q) = %q, want %q", tc.cf, tc.xff, tc.remote, got, tc.want)
		}
	}
}

func TestFingerprintHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me?x=1", nil)
	req.Header.Set("User-Agent", "probe/1.0")
	req.Header.Set("Cf-Ipcountry", "NL")
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	c := e.NewContext(req, httptest.NewRecorder())

	fp := fingerprint(c)
	if fp.URL != "/api/auth/me?x=1" || fp.Agent != "probe/1.0" || fp.IP != "198.51.100.4" || fp.Country != "NL" {
		t.Errorf("fingerprint = %+v", fp)
	}
}

func TestClassify(t *testing.T) {
	cmdErr := database.NewCommandError(service.CodeRefreshSession, "unable to refresh user session", nil, database.ErrNotReady)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{echo.ErrNotFound, http.StatusNotFound, "ESVR0404"},
		{echo.NewHTTPError(http.StatusTooManyRequests, "too many requests"), http.StatusTooManyRequests, "ESVR0429"},
		{service.ErrUnauthorized, http.StatusUnauthorized, "ESVR0401"},
		{fmt.Errorf("login: %w", service.ErrCookiesDisabled), http.StatusBadRequest, "ESVR0400"},
		{cmdErr, http.StatusInternalServerError, service.CodeRefreshSession},
		{errors.New("boom"), http.StatusInternalServerError, "ESVR0500"},
	}
	for _, tc := range cases {
		status, code, _ := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}

func TestErrorHandlerIncludesRequestID(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/x", nil), rec)
	c.Set(contextReqIDKey, "REQ/ABC")

	ErrorHandler()(errors.New("boom"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"req_id":"REQ/ABC"`) || !strings.Contains(body, `"errcode":"ESVR0500"`) || !strings.Contains(body, `"message":"Server Error"`) {
		t.Errorf("body = %s", body)
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(rate.Limit(1), 2, time.Minute)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.allow("a") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if l.allow("a") {
		t.Fatal("request beyond burst allowed")
	}
	if !l.allow("b") {
		t.Fatal("other client throttled")
	}

	now = now.Add(2 * time.Minute)
	l.allow("c")
	if _, ok := l.limiters["a"]; ok {
		t.Error("idle client was not forgotten")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	l := NewRateLimiter(rate.Limit(0), 1, 0)
	h := l.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	call := func() error {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		return h(e.NewContext(req, httptest.NewRecorder()))
	}
	if err := call(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	var he *echo.HTTPError
	if err := call(); !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("second call = %v, want 429", err)
	}
}
