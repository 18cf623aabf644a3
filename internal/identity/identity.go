// Package identity produces the deterministic, content-addressed identifiers
// used for documents and chunks. Identifiers are name-based UUIDs over a fixed
// namespace and a canonical key string, so re-processing the same input always
// yields the same ID and concurrent workers need no coordination beyond a
// unique constraint on the derived key.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Fixed namespaces. Changing either would re-key every stored identifier, so
// they must never be regenerated.
var (
	documentNamespace = uuid.MustParse("b9cd2e4a-1f6d-4c8e-9a3b-5d7e0f214c68")
	chunkNamespace    = uuid.MustParse("4e61dc29-8b3f-4f5a-bd10-92a7c3e6f8d1")
)

// DocumentID derives the document identifier from its owner and content hash.
// Identical content uploaded by the same owner always maps to the same ID.
func DocumentID(ownerID uuid.UUID, contentHash string) uuid.UUID {
	return uuid.NewSHA1(documentNamespace, []byte(ownerID.String()+":"+contentHash))
}

// ChunkID derives the chunk identifier from its document, chunker identity and
// ordinal position. Re-chunking under the same chunker version reproduces the
// same IDs, making chunk writes idempotent upserts.
func ChunkID(documentID uuid.UUID, chunkerName, chunkerVersion string, ordinal int) uuid.UUID {
	key := fmt.Sprintf("%s:%s:%s:%d", documentID, chunkerName, chunkerVersion, ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(key))
}

// HashReader consumes r and returns the hex-encoded SHA-256 of its contents.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
