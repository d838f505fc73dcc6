package blob

import "testing"

// TestDigestOf tests that both digests are 64 hex characters, stable for
// the same input, and distinct for different input.
func TestDigestOf(t *testing.T) {
	data := []byte("digest fixture")

	d := DigestOf(data)
	if len(d.SHA256) != 64 {
		t.Errorf("sha256 length = %d, want 64", len(d.SHA256))
	}
	if len(d.BLAKE3) != 64 {
		t.Errorf("blake3 length = %d, want 64", len(d.BLAKE3))
	}
	if d.SHA256 == d.BLAKE3 {
		t.Error("sha256 and blake3 of the same data should differ")
	}

	if again := DigestOf(data); again != d {
		t.Errorf("same data produced different digests: %+v vs %+v", again, d)
	}
	if other := DigestOf([]byte("other fixture")); other.SHA256 == d.SHA256 || other.BLAKE3 == d.BLAKE3 {
		t.Error("different data produced a matching digest")
	}
}

// TestSHA256OfKnownValue pins the digest of the empty payload.
func TestSHA256OfKnownValue(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Of(nil); got != emptySHA {
		t.Errorf("SHA256Of(nil) = %s, want %s", got, emptySHA)
	}
}
