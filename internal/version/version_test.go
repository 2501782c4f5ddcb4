package version

import "testing"

func TestString(t *testing.T) {
	v, sha, bt := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, bt })

	Version, GitSHA, BuildTime = "v1.2.3", "abc123", "2026-01-02T03:04:05Z"
	if got, want := String(), "sonar.report v1.2.3 (abc123, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
