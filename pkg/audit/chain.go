package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChainHash computes the next link of the invocation chain.
//
//	hash = SHA-256( prevHash || canonicalPayload || canonicalOutcome )
func ChainHash(prevHash string, canonPayload, canonOutcome []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonPayload)
	h.Write(canonOutcome)
	return hex.EncodeToString(h.Sum(nil))
}

// Link is the part of a stored invocation needed to verify the chain.
type Link struct {
	InvocationID string
	Hash         string
	PrevHash     string
	CanonPayload []byte
	CanonOutcome []byte
}

// VerifyChain checks that links, oldest first, form an unbroken chain
// starting from the first link's recorded predecessor.
func VerifyChain(links []Link) error {
	if len(links) == 0 {
		return nil
	}
	prev := links[0].PrevHash
	for i, l := range links {
		if l.PrevHash != prev {
			return fmt.Errorf("chain broken at index %d (invocation %s): prev_hash %s does not follow %s",
				i, l.InvocationID, l.PrevHash, prev)
		}
		expected := ChainHash(prev, l.CanonPayload, l.CanonOutcome)
		if l.Hash != expected {
			return fmt.Errorf("chain broken at index %d (invocation %s): expected %s, got %s",
				i, l.InvocationID, expected, l.Hash)
		}
		prev = l.Hash
	}
	return nil
}
