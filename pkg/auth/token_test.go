package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
		{"no scheme", "abc.def.ghi", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"empty token", "Bearer ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTokenAuthRequiresSecret(t *testing.T) {
	if _, err := NewTokenAuth("", 0); err == nil {
		t.Error("empty secret accepted")
	}
	a, err := NewTokenAuth("secret", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.expiry != DefaultTokenExpiry {
		t.Errorf("expiry = %v, want default", a.expiry)
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	a, err := NewTokenAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	signed, err := a.Issue("operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := a.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "operator" {
		t.Errorf("subject = %q, want operator", claims.Subject)
	}
	if claims.Issuer != "aiassist" {
		t.Errorf("issuer = %q, want aiassist", claims.Issuer)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewTokenAuth("secret-a", time.Hour)
	verifier, _ := NewTokenAuth("secret-b", time.Hour)

	signed, err := issuer.Issue("operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a, _ := NewTokenAuth("test-secret", time.Nanosecond)
	signed, err := a.Issue("operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := a.Verify(signed); err == nil {
		t.Error("expired token accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a, _ := NewTokenAuth("test-secret", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := a.Verify(tok); err == nil {
			t.Errorf("garbage token %q accepted", tok)
		}
	}
}
