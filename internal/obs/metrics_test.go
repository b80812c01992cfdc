package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/auth/login":                  "/v1/auth/login",
		"/v1/admin/users/42/role":         "/v1/admin/users/:id/role",
		"/v1/admin/hospitals/7":           "/v1/admin/hospitals/:id",
		"/v1/admin/apikeys/9/validate":    "/v1/admin/apikeys/:id/validate",
		"/v1/sensors/ingest?dry_run=true": "/v1/sensors/ingest",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
