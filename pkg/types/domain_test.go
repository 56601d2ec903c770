package types

import "testing"

func TestNegotiateLanguage(t *testing.T) {
	supported := []LanguageTag{"en-US", "fr-FR"}
	cases := []struct {
		name      string
		requested LanguageTag
		want      LanguageTag
	}{
		{"exact match", "fr-FR", "fr-FR"},
		{"primary subtag match", "en-GB", "en-US"},
		{"underscore separator", "en_GB", "en-US"},
		{"no match falls back", "de-DE", "en-US"},
		{"empty falls back", "", "en-US"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NegotiateLanguage(tc.requested, supported, "en-US")
			if got != tc.want {
				t.Fatalf("NegotiateLanguage(%q) = %q, want %q", tc.requested, got, tc.want)
			}
		})
	}
}

func TestNewRequestContextMergesCopies(t *testing.T) {
	base := map[string]string{"site": "home", "room": "hall"}
	slots := map[string]string{"room": "kitchen"}
	ctx := NewRequestContext("en-US", "sat-1", base, slots)

	if ctx.Data["site"] != "home" {
		t.Fatalf("base value lost: %v", ctx.Data)
	}
	if ctx.Data["room"] != "kitchen" {
		t.Fatalf("slot did not override base: %v", ctx.Data)
	}

	// Mutating the context must not leak into the shared base map.
	ctx.Data["site"] = "garage"
	if base["site"] != "home" {
		t.Fatal("request context aliased the base map")
	}
}
