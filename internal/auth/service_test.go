package auth

import (
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestMachineTokenRoundTrip(t *testing.T) {
	gen := NewMachineTokenGenerator()

	token, hash, err := gen.GenerateMachineToken()
	if err != nil {
		t.Fatalf("GenerateMachineToken err=%v", err)
	}
	if !gen.ValidateTokenFormat(token) {
		t.Errorf("generated token has invalid format: %q", token)
	}
	if gen.HashToken(token) != hash {
		t.Error("hash does not match token")
	}

	svc := NewService(testSecret, time.Hour, []string{hash})
	if _, err := svc.ValidateMachineToken(token); err != nil {
		t.Errorf("ValidateMachineToken err=%v", err)
	}
}

func TestMachineTokenRejected(t *testing.T) {
	gen := NewMachineTokenGenerator()
	token, _, err := gen.GenerateMachineToken()
	if err != nil {
		t.Fatalf("GenerateMachineToken err=%v", err)
	}

	// Service knows a different token's hash.
	_, otherHash, _ := gen.GenerateMachineToken()
	svc := NewService(testSecret, time.Hour, []string{otherHash})

	if _, err := svc.ValidateMachineToken(token); err == nil {
		t.Error("expected rejection of unknown token")
	}
	if _, err := svc.ValidateMachineToken("enc_garbage"); err == nil {
		t.Error("expected rejection of malformed token")
	}
}

func TestJWTExchange(t *testing.T) {
	gen := NewMachineTokenGenerator()
	token, hash, _ := gen.GenerateMachineToken()

	svc := NewService(testSecret, time.Hour, []string{hash})

	jwtToken, err := svc.ExchangeToken(token)
	if err != nil {
		t.Fatalf("ExchangeToken err=%v", err)
	}

	claims, err := svc.jwtHandler.ValidateAccessToken(jwtToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken err=%v", err)
	}
	if claims.TokenID == "" {
		t.Error("claims missing token_id")
	}
	if claims.Issuer != "encoderd" {
		t.Errorf("Issuer=%q", claims.Issuer)
	}
}

func TestJWTExpired(t *testing.T) {
	gen := NewMachineTokenGenerator()
	token, hash, _ := gen.GenerateMachineToken()

	svc := NewService(testSecret, -time.Minute, []string{hash})

	jwtToken, err := svc.ExchangeToken(token)
	if err != nil {
		t.Fatalf("ExchangeToken err=%v", err)
	}
	if _, err := svc.jwtHandler.ValidateAccessToken(jwtToken); err == nil {
		t.Error("expected expired token to be rejected")
	}
}
