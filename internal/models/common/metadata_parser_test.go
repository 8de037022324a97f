package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentMetadataStringWithNormalFields(t *testing.T) {
	raw := `{
		"studentId": "stu-001",
		"studentName": "Alice",
		"institutionId": "inst-01",
		"institution": "Example University",
		"kind": "diploma",
		"issueDate": "2023-06-30",
		"expiryDate": "2033-06-30T00:00:00Z",
		"grade": "A",
		"originalFilename": "diploma.pdf",
		"mimeType": "application/pdf",
		"size": 2048
	}`

	metadata, err := ParseDocumentMetadataString(raw)
	require.NoError(t, err)

	assert.Equal(t, "stu-001", metadata.StudentID)
	assert.Equal(t, Diploma, metadata.Kind)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), metadata.IssueDate)
	require.NotNil(t, metadata.ExpiryDate)
	assert.Equal(t, 2033, metadata.ExpiryDate.Year())
	assert.EqualValues(t, 2048, metadata.Size)
}

func TestParseDocumentMetadataStringWithInvalidJSON(t *testing.T) {
	_, err := ParseDocumentMetadataString("not a json object")
	assert.Error(t, err)
}

func TestParseDocumentMetadataMapWithMissingKind(t *testing.T) {
	_, err := ParseDocumentMetadataMap(map[string]interface{}{
		"studentId": "stu-001",
		"issueDate": "2023-06-30",
	})
	assert.Error(t, err)
}

func TestParseDocumentMetadataMapWithUnknownKind(t *testing.T) {
	_, err := ParseDocumentMetadataMap(map[string]interface{}{
		"studentId": "stu-001",
		"kind":      "passport",
		"issueDate": "2023-06-30",
	})
	assert.Error(t, err)
}

func TestParseDocumentMetadataMapWithBadIssueDate(t *testing.T) {
	_, err := ParseDocumentMetadataMap(map[string]interface{}{
		"studentId": "stu-001",
		"kind":      "degree",
		"issueDate": "30/06/2023",
	})
	assert.Error(t, err)
}

func TestParseDocumentMetadataMapWithoutExpiryDate(t *testing.T) {
	metadata, err := ParseDocumentMetadataMap(map[string]interface{}{
		"studentId": "stu-001",
		"kind":      "transcript",
		"issueDate": "2023-06-30",
	})
	require.NoError(t, err)
	assert.Nil(t, metadata.ExpiryDate)
}
