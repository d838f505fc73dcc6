package blob

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest carries both content hashes of one payload. SHA-256 is the
// primary, storage-addressing hash; BLAKE3 is recorded alongside it in
// bundle manifests and resolvable through pointer files.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// DigestOf computes both digests of a payload without storing it.
func DigestOf(data []byte) Digest {
	return Digest{
		SHA256: SHA256Of(data),
		BLAKE3: Blake3Of(data),
	}
}

// SHA256Of returns the lowercase hex SHA-256 of data.
func SHA256Of(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Of returns the lowercase hex BLAKE3-256 of data.
func Blake3Of(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
