package sha256

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestKnownValue(t *testing.T) {
	t.Parallel()

	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", Digest([]byte("hello world")))
}

func TestHasherMatchesDigestForFixturePage(t *testing.T) {
	t.Parallel()

	page, err := os.ReadFile("../../extractor/testdata/gold_volume.html")
	require.NoError(t, err)

	got, err := New().Hash(page)
	require.NoError(t, err)
	require.Equal(t, Digest(page), got)
	require.Len(t, got, 64)
}

func TestDigestChangesWithSingleCount(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, Digest([]byte("<td>201,345</td>")), Digest([]byte("<td>201,346</td>")))
}
