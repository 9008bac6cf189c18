package packages

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm names a digest accepted in an archive URL fragment.
type HashAlgorithm string

const (
	SHA256     HashAlgorithm = "sha256"
	SHA384     HashAlgorithm = "sha384"
	SHA512     HashAlgorithm = "sha512"
	Blake2b256 HashAlgorithm = "blake2b_256"
)

var ErrDigestMismatch = errors.New("archive digest mismatch")

// Digest is an expected archive hash, as written in "#sha256=<hex>".
type Digest struct {
	Algorithm HashAlgorithm
	Hex       string
}

// ParseDigest parses a URL fragment. An empty fragment yields nil.
func ParseDigest(fragment string) (*Digest, error) {
	if fragment == "" {
		return nil, nil
	}
	alg, sum, ok := strings.Cut(fragment, "=")
	if !ok || sum == "" {
		return nil, fmt.Errorf("bad digest fragment %q", fragment)
	}
	d := &Digest{Algorithm: HashAlgorithm(strings.ToLower(alg)), Hex: strings.ToLower(sum)}
	if _, err := d.Algorithm.new(); err != nil {
		return nil, err
	}
	if _, err := hex.DecodeString(d.Hex); err != nil {
		return nil, fmt.Errorf("bad digest fragment %q: %w", fragment, err)
	}
	return d, nil
}

func (a HashAlgorithm) new() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	case Blake2b256:
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("unsupported digest algorithm %q", a)
}

// Sum hashes data with a.
func (a HashAlgorithm) Sum(data []byte) (string, error) {
	h, err := a.new()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks data against the digest.
func (d *Digest) Verify(data []byte) error {
	got, err := d.Algorithm.Sum(data)
	if err != nil {
		return err
	}
	if got != d.Hex {
		return fmt.Errorf("%w: %s want %s, got %s", ErrDigestMismatch, d.Algorithm, d.Hex, got)
	}
	return nil
}

func (d *Digest) String() string {
	return string(d.Algorithm) + "=" + d.Hex
}
