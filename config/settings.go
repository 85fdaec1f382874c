package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"webstack/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings is the process configuration read from .env and the environment.
type Settings struct {
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT" validate:"min=1,max=65535"`
	Env      string `mapstructure:"ENV"`
	Version  string `mapstructure:"VERSION"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`

	DeviceCookieKey      string `mapstructure:"WEBAPP_DEVICE_COOKIE_KEY" validate:"required"`
	DeviceCookieSecret   string `mapstructure:"WEBAPP_DEVICE_COOKIE_SECRET" validate:"required,min=16"`
	DeviceCookieSecured  bool   `mapstructure:"WEBAPP_DEVICE_COOKIE_SECURED"`
	DeviceCookieExpires  int64  `mapstructure:"WEBAPP_DEVICE_COOKIE_EXPIRES_IN_MILLISECONDS" validate:"min=0"`
	SessionCookieKey     string `mapstructure:"WEBAPP_SESSION_COOKIE_KEY" validate:"required,nefield=DeviceCookieKey"`
	SessionCookieSecret  string `mapstructure:"WEBAPP_SESSION_COOKIE_SECRET" validate:"required,min=16"`
	SessionCookieSecured bool   `mapstructure:"WEBAPP_SESSION_COOKIE_SECURED"`
	SessionCookieExpires int64  `mapstructure:"WEBAPP_SESSION_COOKIE_EXPIRES_IN_MILLISECONDS" validate:"min=0"`
	SessionExpires       int64  `mapstructure:"WEBAPP_SESSION_EXPIRES_IN_MILLISECONDS" validate:"gt=0"`
	TokenExpires         int64  `mapstructure:"WEBAPP_TOKEN_EXPIRES_IN_MILLISECONDS" validate:"gt=0"`
	CookiePath           string `mapstructure:"WEBAPP_COOKIE_PATH" validate:"required,startswith=/"`

	AdminUsername string `mapstructure:"WEBAPP_ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"WEBAPP_ADMIN_PASSWORD" validate:"required_with=AdminUsername"`

	MongoNodes        string `mapstructure:"MONGODB_NODES" validate:"required"`
	MongoReadyTimeout int64  `mapstructure:"MONGODB_READY_TIMEOUT_MILLISECONDS" validate:"gt=0"`
}

// Node is one configured database server.
type Node struct {
	Name string
	URI  string
}

var defaults = map[string]any{
	"HOST":      "0.0.0.0",
	"PORT":      8080,
	"ENV":       "development",
	"VERSION":   "0.0.0",
	"LOG_LEVEL": "info",

	"WEBAPP_DEVICE_COOKIE_KEY":                      "device",
	"WEBAPP_DEVICE_COOKIE_SECRET":                   "",
	"WEBAPP_DEVICE_COOKIE_SECURED":                  false,
	"WEBAPP_DEVICE_COOKIE_EXPIRES_IN_MILLISECONDS":  int64(365 * 24 * time.Hour / time.Millisecond),
	"WEBAPP_SESSION_COOKIE_KEY":                     "session",
	"WEBAPP_SESSION_COOKIE_SECRET":                  "",
	"WEBAPP_SESSION_COOKIE_SECURED":                 false,
	"WEBAPP_SESSION_COOKIE_EXPIRES_IN_MILLISECONDS": 0,
	"WEBAPP_SESSION_EXPIRES_IN_MILLISECONDS":        int64(30 * 24 * time.Hour / time.Millisecond),
	"WEBAPP_TOKEN_EXPIRES_IN_MILLISECONDS":          int64(15 * time.Minute / time.Millisecond),
	"WEBAPP_COOKIE_PATH":                            "/api",
	"WEBAPP_ADMIN_USERNAME":                         "",
	"WEBAPP_ADMIN_PASSWORD":                         "",

	"MONGODB_NODES":                      "webapp=localhost:27017",
	"MONGODB_READY_TIMEOUT_MILLISECONDS": 5000,
}

// Load reads .env when present, overlays the environment and validates the result.
func Load(logger logrus.FieldLogger) (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("no .env file loaded")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := s.Nodes(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *Settings) DeviceCookie() service.CookieConfig {
	return service.CookieConfig{
		Name:   s.DeviceCookieKey,
		Secret: s.DeviceCookieSecret,
		Path:   s.CookiePath,
		Secure: s.DeviceCookieSecured,
		MaxAge: millis(s.DeviceCookieExpires),
	}
}

// SessionCookie has no Max-Age when its expiry is zero, so it lasts for the browser session.
func (s *Settings) SessionCookie() service.CookieConfig {
	return service.CookieConfig{
		Name:   s.SessionCookieKey,
		Secret: s.SessionCookieSecret,
		Path:   s.CookiePath,
		Secure: s.SessionCookieSecured,
		MaxAge: millis(s.SessionCookieExpires),
	}
}

func (s *Settings) Auth() service.AuthConfig {
	return service.AuthConfig{
		SessionTTL: millis(s.SessionExpires),
		TokenTTL:   millis(s.TokenExpires),
	}
}

func (s *Settings) ReadyTimeout() time.Duration {
	return millis(s.MongoReadyTimeout)
}

// Nodes parses MONGODB_NODES, a comma separated list of name=host:port entries.
// A value may also be a full mongodb:// or mongodb+srv:// URI.
func (s *Settings) Nodes() ([]Node, error) {
	var nodes []Node
	seen := map[string]bool{}
	for _, entry := range strings.Split(s.MongoNodes, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, addr, ok := strings.Cut(entry, "=")
		name, addr = strings.TrimSpace(name), strings.TrimSpace(addr)
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("config: MONGODB_NODES entry %q must be name=host:port", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("config: MONGODB_NODES repeats node %q", name)
		}
		seen[name] = true
		if !strings.HasPrefix(addr, "mongodb://") && !strings.HasPrefix(addr, "mongodb+srv://") {
			addr = "mongodb://" + addr
		}
		nodes = append(nodes, Node{Name: name, URI: addr})
	}
	if len(nodes) == 0 {
		return nil, errors.New("config: MONGODB_NODES must name at least one node")
	}
	return nodes, nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
