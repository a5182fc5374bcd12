package version

import (
	"strings"
	"testing"
)

func TestInfoMatchesGetters(t *testing.T) {
	v, c, d := Info()
	if v != GetVersion() || c != GetCommit() || d != GetDate() {
		t.Fatalf("Info() = (%s, %s, %s) disagrees with getters", v, c, d)
	}
	if v == "" || c == "" || d == "" {
		t.Fatal("build info must have non-empty defaults")
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"orderdesk", "version=" + GetVersion(), "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, want it to contain %q", s, part)
		}
	}
}
