package plugin

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// hashPrefix tags manifest digests with their algorithm.
const hashPrefix = "blake3:"

// ManifestHash returns the BLAKE3 digest of manifest bytes as
// "blake3:<hex>".
func ManifestHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hashPrefix + hex.EncodeToString(sum[:])
}
