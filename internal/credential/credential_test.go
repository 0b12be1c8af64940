package credential

import (
	"strings"
	"testing"
	"time"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash("correct horse")
	b := Hash("correct horse")
	if a != b {
		t.Errorf("same password hashed differently: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if Hash("other") == a {
		t.Error("different passwords produced the same digest")
	}
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		if len(token) != 43 {
			t.Errorf("token length = %d, want 43", len(token))
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(10)
	if err != nil {
		t.Fatalf("generate password: %v", err)
	}
	if len(pw) != 10 {
		t.Errorf("password length = %d, want 10", len(pw))
	}
	for _, c := range pw {
		if !strings.ContainsRune(passwordAlphabet, c) {
			t.Errorf("password contains %q, outside the alphabet", c)
		}
	}
}

func TestGuardianLogin(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := GuardianLogin(at)
	if got != "user_20250314092653" {
		t.Errorf("login = %q, want user_20250314092653", got)
	}
}

func TestDependentLogin(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	got := DependentLogin("user_20250314092653", at)
	if got != "child_20250314092653_092653" {
		t.Errorf("login = %q, want child_20250314092653_092653", got)
	}

	// A child-derived base must not stack prefixes.
	got = DependentLogin("child_base_111111", at)
	if strings.HasPrefix(got, "child_child_") {
		t.Errorf("login %q stacked child prefixes", got)
	}
}

func TestLoginSuffix(t *testing.T) {
	suffix, err := LoginSuffix()
	if err != nil {
		t.Fatalf("login suffix: %v", err)
	}
	if len(suffix) != 4 {
		t.Errorf("suffix length = %d, want 4", len(suffix))
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			t.Errorf("suffix %q contains non-digit", suffix)
		}
	}
}
