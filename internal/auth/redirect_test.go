package auth

import "testing"

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/find", true},
		{"/dashboard/profile", true},
		{"/", true},
		{"", false},
		{"find", false},
		{"//evil.com", false},
		{"/\\evil.com", false},
		{"https://evil.com", false},
		{"/%2F%2Fevil.com", false},
		{"/find?next=//evil.com", false},
		{"/find\r\nSet-Cookie: x=y", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := SafeRedirect(tt.path); got != tt.want {
				t.Errorf("SafeRedirect(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRedirectOr(t *testing.T) {
	if got := RedirectOr("//evil.com", "/find"); got != "/find" {
		t.Errorf("RedirectOr() = %q, want /find", got)
	}
	if got := RedirectOr("/matches", "/find"); got != "/matches" {
		t.Errorf("RedirectOr() = %q, want /matches", got)
	}
}
