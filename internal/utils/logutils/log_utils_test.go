package logutils

import (
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeMasksEmail(t *testing.T) {
	sanitized := Sanitize("verifier contact: student@example.edu submitted a file")
	assert.NotContains(t, sanitized, "student@example.edu")
	assert.Contains(t, sanitized, "[REDACTED]")
}

func TestSanitizeMasksWalletAddress(t *testing.T) {
	sanitized := Sanitize("issuer 0xAAbbccddeeff00112233445566778899aabbccdd registered a document")
	assert.NotContains(t, sanitized, "0xAAbbccddeeff00112233445566778899aabbccdd")
	assert.Contains(t, sanitized, "[REDACTED]")
}

func TestSanitizeMasksCardAndSSN(t *testing.T) {
	sanitized := Sanitize("card 4111 1111 1111 1111 ssn 123-45-6789")
	assert.NotContains(t, sanitized, "4111 1111 1111 1111")
	assert.NotContains(t, sanitized, "123-45-6789")
}

func TestSanitizeKeepsDocumentHash(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	sanitized := Sanitize("verifying document " + hash)
	// 64 位哈希不是 40 位地址，不应被脱敏
	assert.Contains(t, sanitized, hash)
}

func TestFormatterSanitizesMessageAndFields(t *testing.T) {
	formatter := &SanitizingFormatter{Inner: &log.TextFormatter{DisableTimestamp: true}}

	entry := log.NewEntry(log.New())
	entry.Level = log.InfoLevel
	entry.Message = "owner mail student@example.edu"
	entry.Data = log.Fields{"contact": "other@example.org", "count": 3}

	lineBytes, err := formatter.Format(entry)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	line := string(lineBytes)
	assert.NotContains(t, line, "student@example.edu")
	assert.NotContains(t, line, "other@example.org")
	assert.Contains(t, line, "count=3")
}
