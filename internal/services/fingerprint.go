package services

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"

	"previsioni/internal/core"
)

// Fingerprint hashes the record set. Equal record lists in equal order give
// equal fingerprints. Every field is length prefixed, so arbitrary text in
// any field still changes the digest.
func Fingerprint(records []core.Record) string {
	h := sha256.New()
	for _, r := range records {
		writeField(h, r.ID)
		writeField(h, string(r.Amount))
		writeField(h, r.Date)
		writeField(h, r.Type)
		writeField(h, r.Category)
		writeField(h, r.Description)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
