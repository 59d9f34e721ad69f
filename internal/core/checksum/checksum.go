package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Algorithm names a content digest
type Algorithm string

const (
	// MD5 is what 123pan compares as the upload etag
	MD5 Algorithm = "md5"
	// SHA256 is offered by the hash command for local comparisons only
	SHA256 Algorithm = "sha256"
)

// BlockSize is the read size used when streaming a file into the hasher
const BlockSize = 64 * 1024

// IsSupported reports whether algo can be computed
func IsSupported(algo Algorithm) bool {
	_, err := newHash(algo)
	return err == nil
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", algo)
	}
}

// Sum streams r through algo in BlockSize reads and returns the lowercase
// hex digest. The context is checked before every block, so a cancelled
// hash of a large file stops within one read.
func Sum(ctx context.Context, r io.Reader, algo Algorithm) (string, error) {
	return sumBlocks(ctx, r, algo, BlockSize)
}

func sumBlocks(ctx context.Context, r io.Reader, algo Algorithm, blockSize int) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	block := make([]byte, blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(block)
		if n > 0 {
			h.Write(block[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
