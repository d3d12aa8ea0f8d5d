package registry

import (
	"errors"
	"testing"

	"github.com/savichev/reputa/internal/domain"
)

func fixtureDefs() []domain.AlgorithmDefinition {
	return []domain.AlgorithmDefinition{
		{Key: "voting_engagement", Version: "1.0.0", Runtime: domain.RuntimeTypescript},
		{Key: "voting_engagement", Version: "1.2.0", Runtime: domain.RuntimeTypescript},
		{Key: "voting_engagement", Version: "2.0.0-rc.1", Runtime: domain.RuntimeTypescript},
		{Key: "activity_decay", Version: "0.3.1", Runtime: domain.RuntimePython},
	}
}

func TestResolve_ExactVersion(t *testing.T) {
	r := New(fixtureDefs())

	def, err := r.Resolve("voting_engagement", "1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", def.Version)
	}
}

func TestResolve_Latest(t *testing.T) {
	r := New(fixtureDefs())

	def, err := r.Resolve("voting_engagement", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2.0.0-rc.1 — prerelease, сортируется ниже 2.0.0, но выше 1.2.0
	if def.Version != "2.0.0-rc.1" {
		t.Errorf("expected latest 2.0.0-rc.1, got %s", def.Version)
	}
}

func TestResolve_PrereleaseBelowRelease(t *testing.T) {
	defs := append(fixtureDefs(), domain.AlgorithmDefinition{
		Key: "voting_engagement", Version: "2.0.0", Runtime: domain.RuntimeTypescript,
	})
	r := New(defs)

	def, err := r.Resolve("voting_engagement", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Version != "2.0.0" {
		t.Errorf("expected release 2.0.0 above its prerelease, got %s", def.Version)
	}
}

func TestResolve_BuildMetadataIgnored(t *testing.T) {
	r := New([]domain.AlgorithmDefinition{
		{Key: "content_diversity", Version: "1.0.0+build.7"},
	})

	def, err := r.Resolve("content_diversity", "1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Version != "1.0.0+build.7" {
		t.Errorf("unexpected definition: %s", def.Version)
	}
}

func TestResolve_KeyNotFound(t *testing.T) {
	r := New(fixtureDefs())

	_, err := r.Resolve("nope", "")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestResolve_VersionNotFound(t *testing.T) {
	r := New(fixtureDefs())

	_, err := r.Resolve("voting_engagement", "9.9.9")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestCompare_Ordering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0.0-alpha", "2.0.0", -1},
		{"2.0.0-alpha", "2.0.0-beta", -1},
		{"1.0.0+a", "1.0.0+b", 0},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"voting_engagement", "ab", "a1", "decay_v2"}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) unexpected error: %v", key, err)
		}
	}

	invalid := []string{"", "a", "1abc", "Voting", "has-dash", "_lead", "имя"}
	for _, key := range invalid {
		if err := ValidateKey(key); err == nil {
			t.Errorf("ValidateKey(%q) expected error", key)
		}
	}
}

func TestValidateVersion(t *testing.T) {
	valid := []string{"1.0.0", "0.3.1", "2.0.0-rc.1", "1.0.0+build.7", "1.0.0-rc.1+build"}
	for _, v := range valid {
		if err := ValidateVersion(v); err != nil {
			t.Errorf("ValidateVersion(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "1", "1.2", "v1.0.0", "1.0.0.0", "latest"}
	for _, v := range invalid {
		if err := ValidateVersion(v); err == nil {
			t.Errorf("ValidateVersion(%q) expected error", v)
		}
	}
}
