package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestValidateWebhook(t *testing.T) {
	token := "imsGYyuIJ4eF2wcFIs"
	secret := "app-consumer-secret"

	got := ValidateWebhook(token, secret)

	if !strings.HasPrefix(got.ResponseToken, "sha256=") {
		t.Fatalf("Expected sha256= prefix, got %q", got.ResponseToken)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	want := "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if got.ResponseToken != want {
		t.Errorf("ValidateWebhook() = %q, want %q", got.ResponseToken, want)
	}

	digest, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got.ResponseToken, "sha256="))
	if err != nil {
		t.Fatalf("Response token is not valid base64: %v", err)
	}
	if len(digest) != sha256.Size {
		t.Errorf("Expected a %d byte digest, got %d", sha256.Size, len(digest))
	}
}

func TestValidateWebhook_Deterministic(t *testing.T) {
	first := ValidateWebhook("token", "secret")
	second := ValidateWebhook("token", "secret")
	if first != second {
		t.Errorf("Expected stable output for fixed inputs, got %q and %q", first.ResponseToken, second.ResponseToken)
	}
}

func TestValidateWebhook_SensitiveToInputs(t *testing.T) {
	base := ValidateWebhook("token", "secret")
	if other := ValidateWebhook("token2", "secret"); other == base {
		t.Error("Expected different output for a different token")
	}
	if other := ValidateWebhook("token", "secret2"); other == base {
		t.Error("Expected different output for a different secret")
	}
}
