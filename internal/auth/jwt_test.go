package auth

import "testing"

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := GenerateAdminToken("test-secret", "admin_abas")
	if err != nil {
		t.Fatalf("GenerateAdminToken failed: %v", err)
	}

	subject, err := ValidateAdminToken("test-secret", token)
	if err != nil {
		t.Fatalf("ValidateAdminToken failed: %v", err)
	}
	if subject != "admin_abas" {
		t.Errorf("subject = %q, want %q", subject, "admin_abas")
	}
}

func TestAdminToken_WrongSecret(t *testing.T) {
	token, err := GenerateAdminToken("test-secret", "admin_abas")
	if err != nil {
		t.Fatalf("GenerateAdminToken failed: %v", err)
	}

	if _, err := ValidateAdminToken("other-secret", token); err == nil {
		t.Error("expected validation to fail with the wrong secret")
	}
}

func TestAdminToken_Garbage(t *testing.T) {
	if _, err := ValidateAdminToken("test-secret", "not.a.token"); err == nil {
		t.Error("expected validation to fail for a malformed token")
	}
}
