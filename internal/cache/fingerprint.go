package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Fingerprint returns a deterministic SHA-256 key over the label, prompt and
// blobs in order. Every field is length-prefixed, so moving bytes between
// fields or reordering blobs yields a different key.
func Fingerprint(label, prompt string, blobs ...[]byte) string {
	h := sha256.New()
	writeField(h, []byte(label))
	writeField(h, []byte(prompt))

	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(blobs)))
	h.Write(count[:])
	for _, b := range blobs {
		writeField(h, b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
