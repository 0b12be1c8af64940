package store

import (
	"strings"
	"testing"

	"github.com/pingvi/pingvi/internal/database"
	"github.com/pingvi/pingvi/internal/model"
)

func setupAccountTestDB(t *testing.T) *AccountStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountStore(db)
}

func TestRegisterGuardian(t *testing.T) {
	as := setupAccountTestDB(t)

	reg, err := as.RegisterGuardian(111, "Alex")
	if err != nil {
		t.Fatalf("register guardian: %v", err)
	}
	if !reg.IsNew {
		t.Error("first registration should be new")
	}
	if reg.Password == "" {
		t.Error("first registration should return a plaintext password")
	}
	if len(reg.Password) != 8 {
		t.Errorf("password length = %d, want 8", len(reg.Password))
	}
	if !strings.HasPrefix(reg.Account.Login, "user_") {
		t.Errorf("login = %q, want user_ prefix", reg.Account.Login)
	}
	if reg.Account.Role != model.RoleGuardian {
		t.Errorf("role = %q, want guardian", reg.Account.Role)
	}
	if reg.Account.Coins != 5000 {
		t.Errorf("starting coins = %d, want 5000", reg.Account.Coins)
	}
}

func TestRegisterGuardianIdempotent(t *testing.T) {
	as := setupAccountTestDB(t)

	first, err := as.RegisterGuardian(111, "Alex")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	second, err := as.RegisterGuardian(111, "Alex again")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if second.IsNew {
		t.Error("repeat registration should not be new")
	}
	if second.Password != "" {
		t.Error("repeat registration must not re-issue a password")
	}
	if second.Account.ID != first.Account.ID {
		t.Errorf("repeat registration returned account %d, want %d", second.Account.ID, first.Account.ID)
	}
	if second.Account.Login != first.Account.Login {
		t.Errorf("login changed on repeat registration: %q vs %q", second.Account.Login, first.Account.Login)
	}
}

func TestWelcomeBonusReconciled(t *testing.T) {
	as := setupAccountTestDB(t)
	ls := NewLedgerStore(as.db)

	reg, err := as.RegisterGuardian(111, "Alex")
	if err != nil {
		t.Fatalf("register guardian: %v", err)
	}

	sum, err := ls.SumEntries(reg.Account.ID)
	if err != nil {
		t.Fatalf("sum entries: %v", err)
	}
	balance, err := ls.Balance(reg.Account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if sum != balance {
		t.Errorf("entry sum %d != balance %d", sum, balance)
	}
	if balance != 5000 {
		t.Errorf("balance = %d, want 5000", balance)
	}

	entries, err := ls.History(reg.Account.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 welcome entry, got %d", len(entries))
	}
	if entries[0].Kind != model.EntryAdjusted {
		t.Errorf("welcome entry kind = %q, want adjusted", entries[0].Kind)
	}
}

func TestCreateDependent(t *testing.T) {
	as := setupAccountTestDB(t)

	reg, err := as.RegisterGuardian(111, "Alex")
	if err != nil {
		t.Fatalf("register guardian: %v", err)
	}

	age := 9
	dep, err := as.CreateDependent(reg.Account.ID, "Mia", &age)
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}
	if !strings.HasPrefix(dep.Account.Login, "child_") {
		t.Errorf("login = %q, want child_ prefix", dep.Account.Login)
	}
	if len(dep.Password) != 10 {
		t.Errorf("password length = %d, want 10", len(dep.Password))
	}
	if dep.Account.Role != model.RoleDependent {
		t.Errorf("role = %q, want dependent", dep.Account.Role)
	}
	if dep.Account.ParentID == nil || *dep.Account.ParentID != reg.Account.ID {
		t.Error("dependent should link back to the guardian")
	}
	if dep.Account.Coins != 0 {
		t.Errorf("dependent starting coins = %d, want 0", dep.Account.Coins)
	}
	if dep.Account.Age == nil || *dep.Account.Age != 9 {
		t.Error("age not persisted")
	}

	// Sibling created in the same second still gets a unique login.
	sibling, err := as.CreateDependent(reg.Account.ID, "Finn", nil)
	if err != nil {
		t.Fatalf("create sibling: %v", err)
	}
	if sibling.Account.Login == dep.Account.Login {
		t.Errorf("sibling got duplicate login %q", sibling.Account.Login)
	}
}

func TestCreateDependentUnknownGuardian(t *testing.T) {
	as := setupAccountTestDB(t)

	if _, err := as.CreateDependent(9999, "Mia", nil); err == nil {
		t.Fatal("expected error for unknown guardian")
	}
}

func TestListDependents(t *testing.T) {
	as := setupAccountTestDB(t)

	reg, _ := as.RegisterGuardian(111, "Alex")
	other, _ := as.RegisterGuardian(222, "Sam")

	if _, err := as.CreateDependent(reg.Account.ID, "Mia", nil); err != nil {
		t.Fatalf("create dependent: %v", err)
	}
	if _, err := as.CreateDependent(other.Account.ID, "Noah", nil); err != nil {
		t.Fatalf("create other dependent: %v", err)
	}

	deps, err := as.ListDependents(reg.Account.ID)
	if err != nil {
		t.Fatalf("list dependents: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependent, got %d", len(deps))
	}
	if deps[0].DisplayName != "Mia" {
		t.Errorf("dependent = %q, want Mia", deps[0].DisplayName)
	}
}

func TestGetDependentOwnership(t *testing.T) {
	as := setupAccountTestDB(t)

	reg, _ := as.RegisterGuardian(111, "Alex")
	other, _ := as.RegisterGuardian(222, "Sam")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	got, err := as.GetDependent(other.Account.ID, dep.Account.ID)
	if err != nil {
		t.Fatalf("get dependent: %v", err)
	}
	if got != nil {
		t.Error("foreign guardian should not see another family's child")
	}

	owned, err := as.IsDependentOf(dep.Account.ID, reg.Account.ID)
	if err != nil {
		t.Fatalf("is dependent of: %v", err)
	}
	if !owned {
		t.Error("own child not recognized")
	}
}

func TestUpdateProfile(t *testing.T) {
	as := setupAccountTestDB(t)

	reg, _ := as.RegisterGuardian(111, "Alex")

	name := "Alexandra"
	photo := "https://example.com/a.png"
	updated, err := as.UpdateProfile(reg.Account.ID, &name, &photo)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != name {
		t.Errorf("display name = %q, want %q", updated.DisplayName, name)
	}
	if updated.PhotoURL == nil || *updated.PhotoURL != photo {
		t.Error("photo url not persisted")
	}
	if updated.Login != reg.Account.Login {
		t.Error("login must be immutable")
	}

	// Partial update leaves the other field alone.
	name2 := "Alex"
	updated, err = as.UpdateProfile(reg.Account.ID, &name2, nil)
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if updated.PhotoURL == nil || *updated.PhotoURL != photo {
		t.Error("partial update clobbered photo url")
	}

	// Nil for both fields is a no-op read.
	updated, err = as.UpdateProfile(reg.Account.ID, nil, nil)
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if updated.DisplayName != name2 || updated.PhotoURL == nil || *updated.PhotoURL != photo {
		t.Error("empty update changed the profile")
	}
}

func TestDeactivate(t *testing.T) {
	as := setupAccountTestDB(t)
	ss := NewSessionStore(as.db)

	reg, _ := as.RegisterGuardian(111, "Alex")
	dep, _ := as.CreateDependent(reg.Account.ID, "Mia", nil)

	if _, err := ss.Replace(dep.Account.ID, "tok-mia", "", farFuture()); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := as.Deactivate(dep.Account.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := as.GetByID(dep.Account.ID)
	if err != nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if got != nil {
		t.Error("deactivated account still visible")
	}

	n, err := ss.CountByAccount(dep.Account.ID)
	if err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 0 {
		t.Errorf("deactivation left %d sessions behind", n)
	}

	// Repeat deactivation reports not found.
	if err := as.Deactivate(dep.Account.ID); err == nil {
		t.Error("expected error deactivating an already-inactive account")
	}
}
