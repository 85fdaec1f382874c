package middleware

import (
	"fmt"
	"net"
	"strings"
	"time"

	"webstack/internal/entity"
	"webstack/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	contextAuthKey   = "auth_context"
	contextLoggerKey = "logger"
	contextReqIDKey  = "req_id"

	HeaderRequestID = "X-Request-Id"
)

// RequestContext tags every request with an id and a child logger, attaches an
// AuthContext and issues a device id to browsers that have none.
func RequestContext(auth *service.AuthService, codec *service.TokenCodec, logger logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqID := requestID(req.RemoteAddr, time.Now())
			c.Set(contextReqIDKey, reqID)
			c.Response().Header().Set(HeaderRequestID, reqID)

			reqLogger := logger.WithFields(logrus.Fields{
				"req_id":   reqID,
				"req_addr": req.RemoteAddr,
			})
			c.Set(contextLoggerKey, reqLogger)

			ac := service.NewAuthContext(req.Context(), codec, c, func() entity.Fingerprint {
				return fingerprint(c)
			}, reqLogger)
			c.Set(contextAuthKey, ac)

			if err := auth.EnsureDevice(ac); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func AuthFromContext(c echo.Context) (*service.AuthContext, bool) {
	ac, ok := c.Get(contextAuthKey).(*service.AuthContext)
	return ac, ok
}

func LoggerFromContext(c echo.Context) logrus.FieldLogger {
	if logger, ok := c.Get(contextLoggerKey).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

func RequestIDFromContext(c echo.Context) string {
	id, _ := c.Get(contextReqIDKey).(string)
	return id
}

func requestID(remoteAddr string, now time.Time) string {
	_, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		port = ""
	}
	id := fmt.Sprintf("REQ/%s/%s/%x", uuid.NewString(), port, now.UnixMilli())
	return strings.ToUpper(id)
}

func fingerprint(c echo.Context) entity.Fingerprint {
	req := c.Request()
	return entity.Fingerprint{
		URL:       req.URL.RequestURI(),
		Timestamp: time.Now(),
		Agent:     req.UserAgent(),
		IP:        clientIP(req.Header.Get("Cf-Connecting-Ip"), req.Header.Get("X-Forwarded-For"), req.RemoteAddr),
		Country:   req.Header.Get("Cf-Ipcountry"),
	}
}

func clientIP(cfConnectingIP, forwardedFor, remoteAddr string) string {
	if ip := strings.TrimSpace(cfConnectingIP); ip != "" {
		return ip
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
