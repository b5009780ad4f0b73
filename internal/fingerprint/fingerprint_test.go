package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("The system shall start within 5 seconds.")
	b := Fingerprint("The system shall start within 5 seconds.")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintIgnoresFormatting(t *testing.T) {
	base := Fingerprint("The system shall start within 5 seconds.")

	assert.Equal(t, base, Fingerprint("The system  shall start\twithin 5 seconds."))
	assert.Equal(t, base, Fingerprint("The system shall\nstart within\n5 seconds."))
	assert.Equal(t, base, Fingerprint("  The system shall start within 5 seconds.  "))
}

func TestFingerprintDetectsSubstantiveEdits(t *testing.T) {
	base := Fingerprint("The system shall start within 5 seconds.")

	assert.NotEqual(t, base, Fingerprint("The system shall start within 10 seconds."))
	assert.NotEqual(t, base, Fingerprint("The system should start within 5 seconds."))
	// Case is preserved, so casing edits are substantive.
	assert.NotEqual(t, base, Fingerprint("the system shall start within 5 seconds."))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a\t b \n c "))
	assert.Equal(t, "", Normalize("  \n\t "))
	// NFKC folds compatibility forms such as the ligature ﬁ.
	assert.Equal(t, Normalize("ﬁle"), Normalize("file"))
}
