package security

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studyquest/studyquest/internal/domain"
)

// ─── Secrets ────────────────────────────────────────────────────────────────

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error: %v", err)
	}
	b, _ := GenerateSecret()
	if len(a) != SecretBytes*2 {
		t.Errorf("len = %d, want %d", len(a), SecretBytes*2)
	}
	if a == b {
		t.Error("two generated secrets are equal")
	}
}

func TestLoadOrCreateSecret_Persists(t *testing.T) {
	home := t.TempDir()
	first, err := LoadOrCreateSecret(home)
	if err != nil {
		t.Fatalf("first load error: %v", err)
	}
	second, err := LoadOrCreateSecret(home)
	if err != nil {
		t.Fatalf("second load error: %v", err)
	}
	if first != second {
		t.Error("secret changed between loads")
	}
	info, err := os.Stat(filepath.Join(home, "keys", "jwt.secret"))
	if err != nil {
		t.Fatalf("secret file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secret perm = %o, want 600", info.Mode().Perm())
	}
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

func TestIssueVerify(t *testing.T) {
	tok, _ := NewTokens("s3cret", time.Hour)
	signed, err := tok.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	got, err := tok.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if got != "user-42" {
		t.Errorf("subject = %q, want user-42", got)
	}
}

func TestVerify_Rejects(t *testing.T) {
	tok, _ := NewTokens("s3cret", time.Hour)
	other, _ := NewTokens("different", time.Hour)
	foreign, _ := other.Issue("user-42")

	expired, _ := NewTokens("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Issue("user-42")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42", Issuer: issuer}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", old},
		{"alg none", unsigned},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tok.Verify(tt.token); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestSubject_Unverified(t *testing.T) {
	tok, _ := NewTokens("client-does-not-know-this", time.Hour)
	signed, _ := tok.Issue("user-7")

	got, err := Subject(signed)
	if err != nil || got != "user-7" {
		t.Errorf("Subject() = %q, %v", got, err)
	}
	if _, err := Subject("not-a-token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Subject(garbage) err = %v, want ErrUnauthorized", err)
	}
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", 0); err == nil {
		t.Error("expected error for empty secret")
	}
	tok, _ := NewTokens("x", 0)
	if tok.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", tok.ttl, DefaultTokenTTL)
	}
	if _, err := tok.Issue(""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Issue(\"\") err = %v", err)
	}
}

// ─── Identity ───────────────────────────────────────────────────────────────

func TestContextIdentity(t *testing.T) {
	var id ContextIdentity
	if _, err := id.UserID(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("empty ctx err = %v", err)
	}
	got, err := id.UserID(WithUserID(context.Background(), "u1"))
	if err != nil || got != "u1" {
		t.Errorf("UserID() = %q, %v", got, err)
	}
}

func TestStaticIdentity(t *testing.T) {
	if got, _ := StaticIdentity("u9").UserID(context.Background()); got != "u9" {
		t.Errorf("UserID() = %q", got)
	}
	if _, err := StaticIdentity("").UserID(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("empty err = %v", err)
	}
}
