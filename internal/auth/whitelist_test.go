package auth

import "testing"

func TestMatchAllowedEmail(t *testing.T) {
	entries := []AllowedEmail{
		{Email: "admin@special.com"},
		{Email: "@example.com"},
		{Email: "@gmail.com"},
	}

	cases := []struct {
		candidate string
		want      bool
	}{
		{"admin@special.com", true},          // exact literal
		{"other@special.com", false},         // literal covers only itself
		{"user@example.com", true},           // domain match
		{"user@sub.example.com", true},       // subdomain included
		{"user@deep.sub.example.com", true},  // nested subdomain included
		{"user@notexample.com", false},       // suffix without dot boundary
		{"user@example.com.evil.org", false}, // whitelisted domain as prefix
		{"new.user@gmail.com", true},
		{"USER@EXAMPLE.COM", true}, // case-insensitive
		{"", false},
		{"no-at-sign", false},
		{"two@@example.com", false}, // malformed, more than one @
	}
	for _, tc := range cases {
		if got := MatchAllowedEmail(tc.candidate, entries); got != tc.want {
			t.Errorf("MatchAllowedEmail(%q) = %v, want %v", tc.candidate, got, tc.want)
		}
	}
}

func TestMatchAllowedEmailEmptyWhitelist(t *testing.T) {
	if MatchAllowedEmail("user@example.com", nil) {
		t.Fatal("empty whitelist must deny everything")
	}
}
