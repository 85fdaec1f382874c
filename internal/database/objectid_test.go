package database

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIsIDExpired(t *testing.T) {
	now := time.Now()
	fresh := primitive.NewObjectIDFromTimestamp(now.Add(-time.Minute)).Hex()
	stale := primitive.NewObjectIDFromTimestamp(now.Add(-2 * time.Hour)).Hex()

	if IsIDExpired(fresh, time.Hour, now) {
		t.Fatal("fresh id reported expired")
	}
	if !IsIDExpired(stale, time.Hour, now) {
		t.Fatal("stale id reported valid")
	}
	if !IsIDExpired("not-an-id", time.Hour, now) {
		t.Fatal("invalid id must be expired")
	}
}

func TestIsValidID(t *testing.T) {
	if !IsValidID(NewIDString()) {
		t.Fatal("generated id is not valid")
	}
	if IsValidID("zzz") {
		t.Fatal("garbage accepted")
	}
}
