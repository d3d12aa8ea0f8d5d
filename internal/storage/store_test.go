package storage

import "testing"

func TestArtifactKey_Deterministic(t *testing.T) {
	a := ArtifactKey(NamespaceDeps, "0b5c1e52-8f4a-4d18-9a10-000000000001", "votes.jsonl")
	b := ArtifactKey(NamespaceDeps, "0b5c1e52-8f4a-4d18-9a10-000000000001", "votes.jsonl")

	if a != b {
		t.Errorf("same inputs must give same key: %s != %s", a, b)
	}
	if a != "deps/0b5c1e52-8f4a-4d18-9a10-000000000001/votes.jsonl" {
		t.Errorf("unexpected key layout: %s", a)
	}
}

func TestRef_Key(t *testing.T) {
	key, ok := Ref("s3://reputa-artifacts/results/abc/score.json").Key()
	if !ok {
		t.Fatal("expected valid ref")
	}
	if key != "results/abc/score.json" {
		t.Errorf("unexpected key: %s", key)
	}

	for _, bad := range []Ref{"", "http://x/y", "s3://bucket-only", "s3://bucket/"} {
		if _, ok := bad.Key(); ok {
			t.Errorf("ref %q should be invalid", bad)
		}
	}
}
