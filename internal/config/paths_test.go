package config

import (
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home) // windows

	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/var/lib/voiced", "/var/lib/voiced"},
		{"~", home},
		{"~/models/stt", filepath.Join(home, "models", "stt")},
		{"~other/models", "~other/models"},
	}
	for _, tc := range cases {
		got, err := ExpandPath(tc.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ExpandPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
