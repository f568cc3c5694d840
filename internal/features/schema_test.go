package features

import "testing"

func TestSchemaShape(t *testing.T) {
	s := NewSchema()
	if s.Len() != 25 {
		t.Fatalf("schema length = %d, want 25", s.Len())
	}
	if s.Version != SchemaVersion {
		t.Errorf("schema version = %q, want %q", s.Version, SchemaVersion)
	}

	seen := make(map[string]bool)
	for _, n := range s.Names {
		if seen[n] {
			t.Errorf("duplicate feature name %q", n)
		}
		seen[n] = true
	}
}

func TestFingerprintStable(t *testing.T) {
	a := NewSchema().Fingerprint()
	b := NewSchema().Fingerprint()
	if a != b {
		t.Errorf("fingerprint not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := NewSchema()

	reordered := NewSchema()
	reordered.Names = append([]string{}, base.Names...)
	reordered.Names[0], reordered.Names[1] = reordered.Names[1], reordered.Names[0]
	if base.Fingerprint() == reordered.Fingerprint() {
		t.Error("reordering features must change the fingerprint")
	}

	bumped := NewSchema()
	bumped.Version = "v2"
	if base.Fingerprint() == bumped.Fingerprint() {
		t.Error("version bump must change the fingerprint")
	}
}
