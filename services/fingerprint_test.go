package services

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orquidea/providers/orcid"
)

func TestFingerprintOrderAndDuplicates(t *testing.T) {
	base := Fingerprint([]string{"a", "b", "c"})

	assert.Equal(t, base, Fingerprint([]string{"c", "a", "b"}))
	assert.Equal(t, base, Fingerprint([]string{"a", "b", "b", "c", "a"}))
	assert.Equal(t, base, Fingerprint([]string{"", "a", "b", "", "c"}))
	assert.NotEqual(t, base, Fingerprint([]string{"a", "b"}))
}

func TestFingerprintEmptySet(t *testing.T) {
	sum := sha256.Sum256([]byte(""))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, Fingerprint(nil))
	assert.Equal(t, want, Fingerprint([]string{"", ""}))
}

func TestFingerprintJoinsSortedSet(t *testing.T) {
	sum := sha256.Sum256([]byte("10.1/x|title b"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Fingerprint([]string{"title b", "10.1/x"}))
}

func TestFingerprintWorks(t *testing.T) {
	a := []orcid.Work{work("10.1/X", "One"), work("", "Two")}
	b := []orcid.Work{work("", "Two"), work("10.1/x ", "One renamed"), {}}

	fa := FingerprintWorks(a)
	require.Len(t, fa, 64)
	assert.Equal(t, fa, FingerprintWorks(b))
}
