package hashutils

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBytesMatchesSHA256(t *testing.T) {
	documentBytes := []byte("Document for test")

	expected := sha256.Sum256(documentBytes)
	actual := HashBytes(documentBytes)
	if isEqual := assert.Equal(t, expected, actual); !isEqual {
		t.FailNow()
	}
}

func TestHashReaderMatchesHashBytes(t *testing.T) {
	documentBytes := []byte("Streamed document for test")

	digest, err := HashReader(bytes.NewReader(documentBytes))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, HashBytes(documentBytes), digest)
}

func TestFormatDigestRendering(t *testing.T) {
	digest := HashBytes([]byte("abc"))
	rendered := FormatDigest(digest)

	assert.True(t, strings.HasPrefix(rendered, "0x"))
	assert.Len(t, rendered, 66)
	assert.Equal(t, strings.ToLower(rendered), rendered)
}

func TestParseHashStringRoundTrip(t *testing.T) {
	digest := HashBytes([]byte("round trip"))
	rendered := FormatDigest(digest)

	parsed, err := ParseHashString(rendered)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, digest, parsed)

	// 不带前缀的形式同样可接受
	parsed, err = ParseHashString(rendered[2:])
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, digest, parsed)
}

func TestParseHashStringRejectsMalformed(t *testing.T) {
	_, err := ParseHashString("0x1234")
	assert.Error(t, err)

	_, err = ParseHashString("0x" + strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestVerifyIntegrity(t *testing.T) {
	documentBytes := []byte("Integrity check")
	hash := HashBytesToString(documentBytes)

	assert.True(t, VerifyIntegrity(documentBytes, hash))

	tamperedBytes := append([]byte{}, documentBytes...)
	tamperedBytes[0] ^= 0x01
	assert.False(t, VerifyIntegrity(tamperedBytes, hash))
}

func TestHashBytesDeterministicAcrossGoroutines(t *testing.T) {
	documentBytes := []byte("Concurrent hashing")
	expected := HashBytesToString(documentBytes)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = HashBytesToString(documentBytes)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.Equal(t, expected, result)
	}
}
