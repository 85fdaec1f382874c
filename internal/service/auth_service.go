package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"webstack/internal/database"
	"webstack/internal/entity"
	"webstack/internal/metrics"
	"webstack/internal/repository"
	"webstack/internal/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthService struct {
	users        repository.UserRepository
	sessions     repository.SessionRepository
	securityLogs repository.SecurityLogRepository

	passwordHash PasswordHasher
	clock        Clock
	config       AuthConfig
	metrics      *metrics.Recorder
	logger       logrus.FieldLogger
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	securityLogs repository.SecurityLogRepository,
	passwordHash PasswordHasher,
	clock Clock,
	config AuthConfig,
	recorder *metrics.Recorder,
	logger logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		users:        users,
		sessions:     sessions,
		securityLogs: securityLogs,
		passwordHash: passwordHash,
		clock:        clock,
		config:       config,
		metrics:      recorder,
		logger:       logger.WithField("component", "AuthService"),
	}
}

// EnsureDevice issues a fresh device id to a request that has none.
func (s *AuthService) EnsureDevice(ac *AuthContext) error {
	if ac.AuthToken().DeviceID != "" {
		return nil
	}
	return ac.SetAuthToken(AuthToken{DeviceID: database.NewIDString()})
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, ip string) (*entity.User, error) {
	username = utils.NormalizeUsername(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password == "" {
		_ = s.passwordHash.Verify(dummyPasswordHash, password)
		_ = s.logSecurity(ctx, nil, nil, "", ip, entity.LoginFailed, map[string]any{"username": username})
		return nil, ErrInvalidCredentials
	}
	if user.Suspended || !s.passwordHash.Verify(user.Password, password) {
		_ = s.logSecurity(ctx, &user.ID, nil, "", ip, entity.LoginFailed, map[string]any{"username": username})
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login creates a new session for user on the requesting device. A session
// already present on the request is terminated first and linked as previous.
func (s *AuthService) Login(ctx context.Context, ac *AuthContext, user *entity.User) (*entity.Session, error) {
	auth := ac.AuthToken()
	if auth.DeviceID == "" {
		return nil, ErrCookiesDisabled
	}
	if user == nil || user.ID.IsZero() {
		return nil, ErrInvalidUser
	}
	errContext := map[string]any{"deviceId": auth.DeviceID, "userId": user.ID.Hex()}

	var previous *entity.Session
	if auth.UserID != "" {
		var err error
		previous, err = s.Logout(ctx, ac, "logout")
		if err != nil {
			return nil, database.NewCommandError(CodeCreateSession, "unable to create new session", errContext, err)
		}
	}

	now := s.now()
	token := database.NewIDString()
	fingerprint := ac.Fingerprint()
	session := &entity.Session{
		Device:  auth.DeviceID,
		User:    user.ID,
		Token:   token,
		Tokens:  []entity.TokenRecord{{Token: token, Context: fingerprint}},
		Expires: now.Add(s.config.SessionTTL),
	}
	if previous != nil {
		session.Previous = &previous.ID
		ac.Logger().WithField("session", previous.ID.Hex()).Debug("Automatically logged out previous session for new user login")
	}

	inserted, err := s.sessions.InsertOne(ctx, session)
	if err != nil {
		return nil, database.NewCommandError(CodeCreateSession, "unable to create new session", errContext, err)
	}
	if inserted == nil {
		ac.Logger().WithFields(logrus.Fields(errContext)).Error("User unable to log in")
		return nil, database.NewCommandError(CodeCreateSession, "unable to create new session", errContext, database.ErrNotInserted)
	}

	// Only the response cookies change. The request keeps its decoded token.
	if err := ac.SendAuthToken(AuthToken{
		DeviceID:    auth.DeviceID,
		SessionID:   inserted.ID.Hex(),
		UserID:      user.ID.Hex(),
		Permissions: []string{},
		AccessToken: token,
	}); err != nil {
		return nil, err
	}

	s.metrics.Login(ctx)
	_ = s.logSecurity(ctx, &user.ID, &inserted.ID, auth.DeviceID, fingerprint.IP, entity.LoginSuccess, nil)
	return inserted, nil
}

// Logout clears the session cookie and marks the presented session exited.
// It returns nil when there was nothing to terminate.
func (s *AuthService) Logout(ctx context.Context, ac *AuthContext, reason string) (*entity.Session, error) {
	if reason == "" {
		reason = "logout"
	}
	auth := ac.AuthToken()
	logger := ac.Logger().WithFields(authFields(auth))

	if err := ac.SetAuthToken(AuthToken{DeviceID: auth.DeviceID}); err != nil {
		return nil, err
	}

	if auth.DeviceID == "" {
		logger.Debug("Logging out: User not logged in yet")
		return nil, nil
	}
	if auth.SessionID == "" || auth.AccessToken == "" || auth.UserID == "" {
		logger.Debug("Logging out: User already logged out")
		return nil, nil
	}

	sessionID, err := database.ParseID(auth.SessionID)
	if err != nil {
		logger.WithField("intrusion", true).Warn("[INTRUSION DETECTED] Logging out: User sent invalid session id")
		s.metrics.Intrusion(ctx, metrics.IntrusionSessionID)
		return nil, nil
	}
	userID, err := database.ParseID(auth.UserID)
	if err != nil {
		logger.WithField("intrusion", true).Warn("[INTRUSION DETECTED] Logging out: User sent invalid user id")
		s.metrics.Intrusion(ctx, metrics.IntrusionSessionID)
		return nil, nil
	}

	terminated, err := s.sessions.Terminate(ctx, sessionID, userID, reason)
	if err != nil {
		return nil, database.NewCommandError(CodeTerminateSession, "unable to terminate user session", authFields(auth), err)
	}
	if terminated == nil {
		logger.Warn("Logging out: Session not found")
		return nil, nil
	}

	s.metrics.Logout(ctx)
	_ = s.logSecurity(ctx, &userID, &sessionID, auth.DeviceID, ac.Fingerprint().IP, entity.Logout, map[string]any{"reason": reason})
	return terminated, nil
}

// Refresh rotates the access token of the presented session. A session that can
// no longer be rotated is logged out and nil is returned.
func (s *AuthService) Refresh(ctx context.Context, ac *AuthContext) (*entity.Session, error) {
	auth := ac.AuthToken()
	logger := ac.Logger().WithFields(authFields(auth))

	if auth.SessionID == "" {
		logger.Warn("Not logged in")
		s.metrics.Refresh(ctx, metrics.RefreshAnonymous)
		return nil, nil
	}

	rotated, err := s.rotate(ctx, ac, auth)
	if err != nil {
		return nil, database.NewCommandError(CodeRefreshSession, "unable to refresh user session", authFields(auth), err)
	}
	if rotated != nil {
		auth.AccessToken = rotated.Token
		if err := ac.SetAuthToken(auth); err != nil {
			return nil, err
		}
		s.metrics.Refresh(ctx, metrics.RefreshOK)
		return rotated, nil
	}

	logger.Warn("Failed to issue new auth token")
	s.metrics.Refresh(ctx, metrics.RefreshExpired)
	if _, err := s.Logout(ctx, ac, "session expires"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *AuthService) rotate(ctx context.Context, ac *AuthContext, auth AuthToken) (*entity.Session, error) {
	sessionID, err := database.ParseID(auth.SessionID)
	if err != nil {
		return nil, nil
	}
	userID, err := database.ParseID(auth.UserID)
	if err != nil {
		return nil, nil
	}
	now := s.now()
	return s.sessions.Rotate(ctx, repository.SessionRotation{
		ID:       sessionID,
		User:     userID,
		Device:   auth.DeviceID,
		Token:    auth.AccessToken,
		Now:      now,
		NewToken: database.NewIDString(),
		Context:  ac.Fingerprint(),
		Expires:  now.Add(s.config.SessionTTL),
	})
}

// UserID returns the user of a request whose access token is still fresh.
// The session's blocked and exited flags are only checked by Refresh.
func (s *AuthService) UserID(ac *AuthContext) string {
	auth := ac.AuthToken()
	if auth.UserID == "" || auth.AccessToken == "" {
		return ""
	}
	if database.IsIDExpired(auth.AccessToken, s.config.TokenTTL, s.now()) {
		return ""
	}
	return auth.UserID
}

// UserDetails loads the current user. A found user is cached on the request.
func (s *AuthService) UserDetails(ctx context.Context, ac *AuthContext, projection any) (*entity.User, error) {
	if ac.user != nil {
		return ac.user, nil
	}
	id := s.UserID(ac)
	if id == "" {
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, id, projection)
	if err != nil {
		return nil, err
	}
	if user != nil {
		ac.user = user
	}
	return user, nil
}

// SeedUser stores a user with a bcrypt hash of password unless the username is already taken.
func (s *AuthService) SeedUser(ctx context.Context, username, password string, roles ...entity.UserRole) (*entity.User, error) {
	username = utils.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hash, err := s.passwordHash.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.EnsureByUsername(ctx, &entity.User{
		Username:  username,
		Password:  hash,
		Roles:     roles,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("seed user %s: %w", username, err)
	}
	if user != nil && !user.UpdatedExisting() {
		s.logger.WithField("username", username).Info("seeded user")
	}
	return user, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *primitive.ObjectID,
	sessionID *primitive.ObjectID,
	device string,
	ip string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	log := &entity.SecurityLog{
		UserID:    userID,
		SessionID: sessionID,
		Device:    device,
		IPAddress: ip,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	return s.securityLogs.Log(ctx, log)
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func authFields(auth AuthToken) logrus.Fields {
	return logrus.Fields{
		"device":  auth.DeviceID,
		"session": auth.SessionID,
		"user":    auth.UserID,
	}
}
