package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func buildToken(t *testing.T, now time.Time, mutate func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("kirana-platform").
		Audience([]string{"kirana-admin"}).
		Subject("op_1").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute)).
		Claim("role", "admin")
	if mutate != nil {
		b = mutate(b)
	}
	token, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return token
}

func adminValidator() TokenValidator {
	return TokenValidator{
		Issuer:       "kirana-platform",
		Audience:     "kirana-admin",
		ClockSkew:    time.Second,
		Algorithm:    jwa.HS256,
		RequiredRole: "admin",
	}
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, nil)
	if err := adminValidator().Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer("other")
	})
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestTokenValidatorAudienceMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Audience([]string{"storefront"})
	})
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected audience mismatch error")
	}
}

func TestTokenValidatorExpiry(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.IssuedAt(now.Add(-2 * time.Hour)).
			NotBefore(now.Add(-2 * time.Hour)).
			Expiration(now.Add(-time.Minute))
	})
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected expiration error")
	}
}

func TestTokenValidatorNotBefore(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.NotBefore(now.Add(5 * time.Minute)).Expiration(now.Add(10 * time.Minute))
	})
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected not-before validation error")
	}
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, nil)
	if err := adminValidator().Validate(token, jwa.RS256, now); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestTokenValidatorMissingRole(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer("kirana-platform").
		Audience([]string{"kirana-admin"}).
		Subject("op_1").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected missing role error")
	}
}

func TestTokenValidatorWrongRole(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim("role", "viewer")
	})
	if err := adminValidator().Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected role mismatch error")
	}
}

func TestTokenValidatorClockSkewTolerance(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Expiration(now.Add(-2 * time.Second))
	})
	validator := adminValidator()
	validator.ClockSkew = 10 * time.Second
	if err := validator.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("expected skew tolerance to accept token, got %v", err)
	}
}
