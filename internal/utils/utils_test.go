package utils

import (
	"regexp"
	"testing"
)

func TestGenerateOrderIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{13}-[a-z0-9]{9}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateOrderID()
		if !pattern.MatchString(id) {
			t.Fatalf("order id %q does not match the storefront format", id)
		}
		if seen[id] {
			t.Fatalf("duplicate order id %q", id)
		}
		seen[id] = true
	}
}

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT(42, "admin@nomadsim.mn", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "admin@nomadsim.mn" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT(1, "a@b.mn", "viewer")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ValidateJWT(token + "x"); err == nil {
		t.Error("tampered token must not validate")
	}

	t.Setenv("JWT_SECRET", "different-secret")
	if _, err := ValidateJWT(token); err == nil {
		t.Error("token signed with another secret must not validate")
	}
}

func TestJWTRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := GenerateJWT(1, "a@b.mn", "admin"); err == nil {
		t.Error("expected error without JWT_SECRET")
	}
	if _, err := ValidateJWT("whatever"); err == nil {
		t.Error("expected error without JWT_SECRET")
	}
}

func TestSignAndVerifyPayload(t *testing.T) {
	payload := []byte(`{"object_id":"inv-1","payment_status":"PAID"}`)

	sig := SignPayload(payload, "webhook-secret")
	if !VerifyPayload(payload, sig, "webhook-secret") {
		t.Error("valid signature rejected")
	}
	if VerifyPayload(payload, sig, "other-secret") {
		t.Error("signature verified with the wrong secret")
	}
	if VerifyPayload([]byte(`{"object_id":"inv-2"}`), sig, "webhook-secret") {
		t.Error("signature verified for a different payload")
	}
	if VerifyPayload(payload, "", "webhook-secret") {
		t.Error("empty signature verified")
	}
}
