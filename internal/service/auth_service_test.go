package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webstack/internal/database"
	"webstack/internal/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureDeviceIssuesDeviceCookie(t *testing.T) {
	f := newFixture(t)
	b := newBrowser()
	ac := f.context(b)

	if err := f.service.EnsureDevice(ac); err != nil {
		t.Fatalf("EnsureDevice: %v", err)
	}
	if !database.IsValidID(ac.AuthToken().DeviceID) {
		t.Fatalf("expected a fresh device id, got %q", ac.AuthToken().DeviceID)
	}
	if !b.has(testDevice.Name) {
		t.Fatal("device cookie not sent")
	}

	next := f.context(b)
	if next.AuthToken().DeviceID != ac.AuthToken().DeviceID {
		t.Fatal("device id should survive across requests")
	}
}

func TestLoginRequiresDevice(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Login(context.Background(), f.context(newBrowser()), newUser("alice"))
	if !errors.Is(err, ErrCookiesDisabled) {
		t.Fatalf("expected ErrCookiesDisabled, got %v", err)
	}
	if f.sessions.inserts != 0 {
		t.Fatal("no session should be created")
	}
}

func TestLoginRequiresValidUser(t *testing.T) {
	f := newFixture(t)
	b := f.deviceBrowser(t)

	for _, u := range []*entity.User{nil, {Username: "ghost"}} {
		if _, err := f.service.Login(context.Background(), f.context(b), u); !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("expected ErrInvalidUser, got %v", err)
		}
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	alice := newUser("alice")
	f := newFixture(t, alice)
	b := f.deviceBrowser(t)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, f.context(b), alice); err != nil {
		t.Fatalf("Login: %v", err)
	}

	first, err := f.service.Logout(ctx, f.context(b), "")
	if err != nil || first == nil {
		t.Fatalf("first logout should terminate the session, got %v, %v", first, err)
	}
	if f.sessions.terminates != 1 {
		t.Fatalf("expected one terminate, got %d", f.sessions.terminates)
	}
	if b.has(testSession.Name) {
		t.Fatal("session cookie should be cleared")
	}

	second, err := f.service.Logout(ctx, f.context(b), "")
	if err != nil || second != nil {
		t.Fatalf("second logout should be a no-op, got %v, %v", second, err)
	}
	if f.sessions.terminates != 1 {
		t.Fatal("second logout must not reach the database")
	}
	if !b.has(testDevice.Name) {
		t.Fatal("device cookie must survive logout")
	}
}

func TestLogoutWithInvalidSessionID(t *testing.T) {
	f := newFixture(t)
	b := f.deviceBrowser(t)
	device := f.context(b).AuthToken().DeviceID

	jar := b.request()
	if err := f.codec.Encode(AuthToken{DeviceID: device, SessionID: "xyz", UserID: "u", AccessToken: "t"}, jar); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := f.service.Logout(context.Background(), f.context(b), "")
	if err != nil || got != nil {
		t.Fatalf("expected nil, got %v, %v", got, err)
	}
	if f.sessions.terminates != 0 {
		t.Fatal("invalid session id must not reach the database")
	}
	if f.hook.LastEntry().Data["intrusion"] != true {
		t.Fatal("expected an intrusion warning")
	}
}

func TestLoginSupersedesPreviousSession(t *testing.T) {
	alice, bob := newUser("alice"), newUser("bob")
	f := newFixture(t, alice, bob)
	b := f.deviceBrowser(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, f.context(b), alice)
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}
	second, err := f.service.Login(ctx, f.context(b), bob)
	if err != nil {
		t.Fatalf("Login bob: %v", err)
	}

	active := f.sessions.active()
	if len(active) != 1 || active[0].User != bob.ID {
		t.Fatalf("expected only bob's session to be active, got %+v", active)
	}
	if f.sessions.get(first.ID.Hex()).Previous != nil {
		t.Fatal("the first session is the root of the chain")
	}
	if second.Previous == nil || *second.Previous != first.ID {
		t.Fatal("bob's session should link to alice's")
	}
}

func TestConcurrentRefreshOnlyOneWins(t *testing.T) {
	alice := newUser("alice")
	f := newFixture(t, alice)
	b := f.deviceBrowser(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, f.context(b), alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	const racers = 2
	contexts := []*AuthContext{f.context(b), f.context(b)}
	results := make([]*entity.Session, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.service.Refresh(ctx, contexts[i])
			if err != nil {
				t.Errorf("Refresh: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, res := range results {
		if res != nil {
			winners++
			if res.Token == session.Token {
				t.Fatal("refresh should rotate the access token")
			}
			continue
		}
		if contexts[i].AuthToken().SessionID != "" {
			t.Fatal("the losing request should be logged out")
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one refresh to succeed, got %d", winners)
	}
	if !f.sessions.get(session.ID.Hex()).Exited {
		t.Fatal("the losing refresh forces a logout of the session")
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	f := newFixture(t)
	b := f.deviceBrowser(t)

	got, err := f.service.Refresh(context.Background(), f.context(b))
	if err != nil || got != nil {
		t.Fatalf("expected nil, got %v, %v", got, err)
	}
	if f.sessions.terminates != 0 {
		t.Fatal("refresh without a session must not log out")
	}
}

func TestUserIDIgnoresBlockedSession(t *testing.T) {
	alice := newUser("alice")
	f := newFixture(t, alice)
	b := f.deviceBrowser(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, f.context(b), alice)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.sessions.block(session.ID)

	// Access token freshness is the only check until the next refresh.
	if got := f.service.UserID(f.context(b)); got != alice.ID.Hex() {
		t.Fatalf("blocked session should still resolve its user until refresh, got %q", got)
	}

	ac := f.context(b)
	refreshed, err := f.service.Refresh(ctx, ac)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed != nil {
		t.Fatal("blocked session must not refresh")
	}
	if f.service.UserID(ac) != "" {
		t.Fatal("user id should be gone after the failed refresh")
	}
}

func TestUserIDRejectsExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	b := f.deviceBrowser(t)
	device := f.context(b).AuthToken().DeviceID

	old := primitive.NewObjectIDFromTimestamp(time.Now().Add(-time.Hour)).Hex()
	jar := b.request()
	if err := f.codec.Encode(AuthToken{DeviceID: device, SessionID: database.NewIDString(), UserID: database.NewIDString(), AccessToken: old}, jar); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := f.service.UserID(f.context(b)); got != "" {
		t.Fatalf("expired access token should not resolve a user, got %q", got)
	}
}

func TestUserDetailsIsCached(t *testing.T) {
	alice := newUser("alice")
	f := newFixture(t, alice)
	b := f.deviceBrowser(t)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, f.context(b), alice); err != nil {
		t.Fatalf("Login: %v", err)
	}
	ac := f.context(b)
	first, err := f.service.UserDetails(ctx, ac, nil)
	if err != nil || first == nil || first.ID != alice.ID {
		t.Fatalf("expected alice, got %v, %v", first, err)
	}

	f.users.mu.Lock()
	delete(f.users.byID, alice.ID.Hex())
	f.users.mu.Unlock()

	again, err := f.service.UserDetails(ctx, ac, nil)
	if err != nil || again != first {
		t.Fatal("user details should be served from the request cache")
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.SeedUser(ctx, "Alice", "correct horse", entity.UserRoleAdmin); err != nil {
		t.Fatalf("SeedUser: %v", err)
	}

	user, err := f.service.Authenticate(ctx, " alice ", "correct horse", "127.0.0.1")
	if err != nil || user == nil || !user.HasRole(entity.UserRoleAdmin) {
		t.Fatalf("expected alice as admin, got %v, %v", user, err)
	}
	if _, err := f.service.Authenticate(ctx, "alice", "wrong", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.service.Authenticate(ctx, "nobody", "wrong", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	failed := 0
	for _, a := range f.logs.actions() {
		if a == entity.LoginFailed {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("expected 2 failed login records, got %d", failed)
	}
}

func TestSessionLifecycleEndToEnd(t *testing.T) {
	u1 := newUser("u1")
	f := newFixture(t, u1)
	ctx := context.Background()
	b := newBrowser()

	// A fresh device gets an id.
	ac := f.context(b)
	if ac.AuthToken().DeviceID != "" {
		t.Fatal("fresh browser should be anonymous")
	}
	if err := f.service.EnsureDevice(ac); err != nil {
		t.Fatalf("EnsureDevice: %v", err)
	}
	deviceID := ac.AuthToken().DeviceID

	// Login.
	before := time.Now()
	session, err := f.service.Login(ctx, f.context(b), u1)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Device != deviceID || session.User != u1.ID || session.Exited {
		t.Fatalf("unexpected session %+v", session)
	}
	if d := session.Expires.Sub(before); d < time.Hour-time.Second || d > time.Hour+time.Second {
		t.Fatalf("expires should be about one hour from now, got %s", d)
	}
	auth := f.context(b).AuthToken()
	if auth.SessionID != session.ID.Hex() || auth.UserID != u1.ID.Hex() || auth.AccessToken != session.Token {
		t.Fatalf("cookies not updated after login: %+v", auth)
	}

	// Refresh.
	refreshed, err := f.service.Refresh(ctx, f.context(b))
	if err != nil || refreshed == nil {
		t.Fatalf("Refresh: %v, %v", refreshed, err)
	}
	if refreshed.Token == session.Token {
		t.Fatal("refresh should issue a new access token")
	}
	if !refreshed.Expires.After(session.Expires) && !refreshed.Expires.Equal(session.Expires) {
		t.Fatal("refresh should extend expires")
	}
	stored := f.sessions.get(session.ID.Hex())
	if len(stored.Tokens) != 2 || stored.Tokens[0].Token != session.Token || stored.Tokens[1].Token != refreshed.Token {
		t.Fatalf("token history not appended: %+v", stored.Tokens)
	}
	if f.context(b).AuthToken().AccessToken != refreshed.Token {
		t.Fatal("cookie should carry the rotated access token")
	}

	// Logout.
	terminated, err := f.service.Logout(ctx, f.context(b), "user action")
	if err != nil || terminated == nil {
		t.Fatalf("Logout: %v, %v", terminated, err)
	}
	stored = f.sessions.get(session.ID.Hex())
	if !stored.Exited || stored.Reason != "user action" {
		t.Fatalf("session not exited: %+v", stored)
	}
	final := f.context(b).AuthToken()
	if final.DeviceID != deviceID || final.SessionID != "" {
		t.Fatalf("cookies should be device-only after logout, got %+v", final)
	}

	actions := f.logs.actions()
	if len(actions) != 2 || actions[0] != entity.LoginSuccess || actions[1] != entity.Logout {
		t.Fatalf("unexpected security log %v", actions)
	}
}
