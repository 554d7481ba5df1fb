package main

import (
	"strings"
	"testing"

	"milkledger/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	cases := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "missing secret", secret: "", wantErr: true},
		{name: "short secret", secret: "too-short", wantErr: true},
		{name: "exactly 32 chars", secret: strings.Repeat("a", 32), wantErr: false},
		{name: "long secret", secret: strings.Repeat("a", 64), wantErr: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSecurityConfig(config.Config{AuthSecret: tc.secret})
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.secret)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.secret, err)
			}
		})
	}
}
