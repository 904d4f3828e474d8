package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"orquidea/providers/orcid"
)

// Fingerprint hashes the sorted, deduplicated set of non-empty identities.
// The result does not depend on input order or duplicates; an empty set
// hashes the empty string.
func Fingerprint(identities []string) string {
	seen := make(map[string]struct{}, len(identities))
	set := make([]string, 0, len(identities))
	for _, id := range identities {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Strings(set)

	sum := sha256.Sum256([]byte(strings.Join(set, "|")))
	return hex.EncodeToString(sum[:])
}

// FingerprintWorks fingerprints a full fresh work list.
func FingerprintWorks(works []orcid.Work) string {
	ids := make([]string, 0, len(works))
	for _, w := range works {
		ids = append(ids, WorkIdentity(w))
	}
	return Fingerprint(ids)
}
