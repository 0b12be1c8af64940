package store

import (
	"testing"
	"time"

	"github.com/pingvi/pingvi/internal/database"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionStore(db), NewAccountStore(db)
}

func farFuture() time.Time {
	return time.Now().Add(24 * time.Hour)
}

func TestReplaceKeepsSingleSession(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")

	first, err := ss.Replace(reg.Account.ID, "tok-1", "bot", farFuture())
	if err != nil {
		t.Fatalf("first replace: %v", err)
	}
	second, err := ss.Replace(reg.Account.ID, "tok-2", "web", farFuture())
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}

	n, err := ss.CountByAccount(reg.Account.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("account has %d sessions, want 1", n)
	}

	gone, err := ss.GetByToken(first.Token)
	if err != nil {
		t.Fatalf("get old token: %v", err)
	}
	if gone != nil {
		t.Error("old token should be gone after a new login")
	}

	got, err := ss.GetByToken(second.Token)
	if err != nil {
		t.Fatalf("get new token: %v", err)
	}
	if got == nil || got.DeviceInfo != "web" {
		t.Error("new session not resolvable by token")
	}
}

func TestRotate(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")

	sess, _ := ss.Replace(reg.Account.ID, "tok-1", "", farFuture())

	newExpiry := time.Now().Add(48 * time.Hour).UTC()
	rotated, err := ss.Rotate(sess.ID, "tok-2", newExpiry)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated == nil {
		t.Fatal("rotate returned nil for a live session")
	}
	if rotated.ID != sess.ID {
		t.Errorf("rotate changed session identity: %d vs %d", rotated.ID, sess.ID)
	}
	if rotated.Token != "tok-2" {
		t.Errorf("token = %q, want tok-2", rotated.Token)
	}

	old, _ := ss.GetByToken("tok-1")
	if old != nil {
		t.Error("old token still resolves after rotation")
	}

	// Rotating a deleted session signals with a nil result.
	if err := ss.DeleteByToken("tok-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rotated, err = ss.Rotate(sess.ID, "tok-3", newExpiry)
	if err != nil {
		t.Fatalf("rotate deleted: %v", err)
	}
	if rotated != nil {
		t.Error("rotate of a deleted session should return nil")
	}
}

func TestDeleteByTokenIdempotent(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	reg, _ := as.RegisterGuardian(111, "Alex")
	ss.Replace(reg.Account.ID, "tok-1", "", farFuture())

	if err := ss.DeleteByToken("tok-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ss.DeleteByToken("tok-1"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if err := ss.DeleteByToken("never-existed"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	alex, _ := as.RegisterGuardian(111, "Alex")
	sam, _ := as.RegisterGuardian(222, "Sam")

	ss.Replace(alex.Account.ID, "tok-old", "", time.Now().Add(-time.Hour))
	ss.Replace(sam.Account.ID, "tok-live", "", farFuture())

	n, err := ss.DeleteExpired(time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d sessions, want 1", n)
	}

	live, _ := ss.GetByToken("tok-live")
	if live == nil {
		t.Error("live session swept by mistake")
	}
}
