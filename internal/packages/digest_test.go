package packages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestParseDigest(t *testing.T) {
	d, err := ParseDigest("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDigest("SHA256=ABCD")
	require.NoError(t, err)
	assert.Equal(t, SHA256, d.Algorithm)
	assert.Equal(t, "abcd", d.Hex)
	assert.Equal(t, "sha256=abcd", d.String())

	for _, bad := range []string{"sha256", "sha256=", "md5=abcd", "sha256=zz"} {
		_, err := ParseDigest(bad)
		assert.Error(t, err, bad)
	}
}

func TestDigestVerify(t *testing.T) {
	data := []byte("archive bytes")

	s := sha256.Sum256(data)
	d := &Digest{Algorithm: SHA256, Hex: hex.EncodeToString(s[:])}
	assert.NoError(t, d.Verify(data))
	assert.ErrorIs(t, d.Verify([]byte("other")), ErrDigestMismatch)

	b := blake2b.Sum256(data)
	d = &Digest{Algorithm: Blake2b256, Hex: hex.EncodeToString(b[:])}
	assert.NoError(t, d.Verify(data))
}

func TestParseSpecDigest(t *testing.T) {
	spec, err := ParseSpec("https://example.com/x-1.0.whl#sha256=00ff")
	require.NoError(t, err)
	require.NotNil(t, spec.Digest)
	assert.Equal(t, "00ff", spec.Digest.Hex)

	_, err = ParseSpec("https://example.com/x-1.0.whl#md5=00ff")
	assert.Error(t, err)
}

func TestManagerVerifiesDigest(t *testing.T) {
	archive := zipArchive(t, sampleFiles)
	path := filepath.Join(t.TempDir(), "plotkit-0.3.1.zip")
	require.NoError(t, os.WriteFile(path, archive, 0o644))

	sum := sha256.Sum256(archive)
	good := hex.EncodeToString(sum[:])
	ctx := context.Background()

	m := NewManager(nil, nil, nil)
	_, err := m.Install(ctx, "file://"+path+"#sha256="+hex.EncodeToString(make([]byte, 32)))
	assert.ErrorIs(t, err, ErrDigestMismatch)
	assert.Empty(t, m.Installed())

	pkg, err := m.Install(ctx, "file://"+path+"#sha256="+good)
	require.NoError(t, err)
	assert.Equal(t, good, pkg.SHA256)
}
