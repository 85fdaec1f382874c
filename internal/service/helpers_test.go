package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"webstack/internal/database"
	"webstack/internal/entity"
	"webstack/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memSessionRepo struct {
	mu         sync.Mutex
	byID       map[primitive.ObjectID]*entity.Session
	order      []primitive.ObjectID
	inserts    int
	terminates int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: map[primitive.ObjectID]*entity.Session{}}
}

func (r *memSessionRepo) InsertOne(ctx context.Context, s *entity.Session) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if s.ID.IsZero() {
		s.ID = database.NewID()
	}
	stored := *s
	stored.Tokens = append([]entity.TokenRecord{}, s.Tokens...)
	r.byID[s.ID] = &stored
	r.order = append(r.order, s.ID)
	out := stored
	return &out, nil
}

func (r *memSessionRepo) Terminate(ctx context.Context, sessionID, userID primitive.ObjectID, reason string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminates++
	s, ok := r.byID[sessionID]
	if !ok || s.User != userID || s.Exited {
		return nil, nil
	}
	s.Exited = true
	s.Reason = reason
	s.Expires = time.Now()
	out := *s
	return &out, nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, rot repository.SessionRotation) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[rot.ID]
	if !ok || s.User != rot.User || s.Device != rot.Device || s.Token != rot.Token ||
		s.Exited || s.Blocked || !s.Expires.After(rot.Now) {
		return nil, nil
	}
	s.Token = rot.NewToken
	s.Expires = rot.Expires
	s.Tokens = append(s.Tokens, entity.TokenRecord{Token: rot.NewToken, Context: rot.Context})
	out := *s
	out.Tokens = nil
	return &out, nil
}

func (r *memSessionRepo) get(id string) *entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	oid, _ := database.ParseID(id)
	s, ok := r.byID[oid]
	if !ok {
		return nil
	}
	out := *s
	return &out
}

func (r *memSessionRepo) active() []entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Session
	for _, id := range r.order {
		if s := r.byID[id]; !s.Exited {
			out = append(out, *s)
		}
	}
	return out
}

func (r *memSessionRepo) block(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].Blocked = true
}

type memUserRepo struct {
	mu     sync.Mutex
	byID   map[string]*entity.User
	byName map[string]*entity.User
}

func newMemUserRepo(users ...*entity.User) *memUserRepo {
	r := &memUserRepo{byID: map[string]*entity.User{}, byName: map[string]*entity.User{}}
	for _, u := range users {
		r.byID[u.ID.Hex()] = u
		r.byName[u.Username] = u
	}
	return r
}

func (r *memUserRepo) FindByID(ctx context.Context, id string, projection any) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[username], nil
}

func (r *memUserRepo) EnsureByUsername(ctx context.Context, user *entity.User) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[user.Username]; ok {
		out := *existing
		out.MarkUpdatedExisting(true)
		return &out, nil
	}
	user.ID = database.NewID()
	r.byID[user.ID.Hex()] = user
	r.byName[user.Username] = user
	return user, nil
}

type memSecurityLogRepo struct {
	mu   sync.Mutex
	logs []entity.SecurityLog
}

func (r *memSecurityLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memSecurityLogRepo) actions() []entity.SecurityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.SecurityAction, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// browser keeps cookies between requests the way a user agent would.
type browser struct {
	mu  sync.Mutex
	jar map[string]*http.Cookie
}

func newBrowser() *browser {
	return &browser{jar: map[string]*http.Cookie{}}
}

// request builds the cookie view of one request carrying the browser's current cookies.
func (b *browser) request() *requestCookies {
	b.mu.Lock()
	defer b.mu.Unlock()
	in := make(map[string]*http.Cookie, len(b.jar))
	for k, v := range b.jar {
		in[k] = v
	}
	return &requestCookies{in: in, browser: b}
}

func (b *browser) store(c *http.Cookie) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.MaxAge < 0 {
		delete(b.jar, c.Name)
		return
	}
	b.jar[c.Name] = c
}

func (b *browser) has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jar[name]
	return ok
}

type requestCookies struct {
	in      map[string]*http.Cookie
	out     []*http.Cookie
	browser *browser
}

func (r *requestCookies) Cookie(name string) (*http.Cookie, error) {
	c, ok := r.in[name]
	if !ok {
		return nil, http.ErrNoCookie
	}
	return c, nil
}

func (r *requestCookies) SetCookie(c *http.Cookie) {
	r.out = append(r.out, c)
	if r.browser != nil {
		r.browser.store(c)
	}
}

var (
	testDevice  = CookieConfig{Name: "device", Secret: "device-secret-0123456789", Path: "/api", MaxAge: 365 * 24 * time.Hour}
	testSession = CookieConfig{Name: "session", Secret: "session-secret-0123456789", Path: "/api"}
)

type fixture struct {
	codec    *TokenCodec
	service  *AuthService
	sessions *memSessionRepo
	users    *memUserRepo
	logs     *memSecurityLogRepo
	logger   *logrus.Logger
	hook     *test.Hook
}

func newFixture(t *testing.T, users ...*entity.User) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		codec:    NewTokenCodec(testDevice, testSession, nil),
		sessions: newMemSessionRepo(),
		users:    newMemUserRepo(users...),
		logs:     &memSecurityLogRepo{},
		logger:   logger,
		hook:     hook,
	}
	f.service = NewAuthService(f.users, f.sessions, f.logs, BcryptPasswordHasher{Cost: 4}, RealClock{},
		AuthConfig{SessionTTL: time.Hour, TokenTTL: 15 * time.Minute}, nil, logger)
	return f
}

func (f *fixture) context(b *browser) *AuthContext {
	return NewAuthContext(context.Background(), f.codec, b.request(), func() entity.Fingerprint {
		return entity.Fingerprint{URL: "/api/auth", Timestamp: time.Now(), Agent: "test", IP: "127.0.0.1"}
	}, f.logger)
}

// deviceBrowser returns a browser that already holds a device cookie.
func (f *fixture) deviceBrowser(t *testing.T) *browser {
	t.Helper()
	b := newBrowser()
	if err := f.service.EnsureDevice(f.context(b)); err != nil {
		t.Fatalf("EnsureDevice: %v", err)
	}
	return b
}

func newUser(name string) *entity.User {
	return &entity.User{Model: database.Model{ID: database.NewID()}, Username: name}
}
