package objectclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"notes.pdf", "users/u1/documents/d1/notes.pdf"},
		{"../../etc/passwd", "users/u1/documents/d1/passwd"},
		{`C:\docs\week 1.docx`, "users/u1/documents/d1/week 1.docx"},
		{"", "users/u1/documents/d1/document"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DocumentKey("u1", "d1", tt.file), tt.file)
	}
}

func TestObjectURLRoundTrip(t *testing.T) {
	key := DocumentKey("u1", "d1", "notes.pdf")
	u := ObjectURL("examina-docs", "us-east-2", key)
	assert.Equal(t, "https://examina-docs.s3.us-east-2.amazonaws.com/users/u1/documents/d1/notes.pdf", u)

	bucket, gotKey, err := ParseObjectURL(u)
	require.NoError(t, err)
	assert.Equal(t, "examina-docs", bucket)
	assert.Equal(t, key, gotKey)
}

func TestParseObjectURLRejects(t *testing.T) {
	for _, raw := range []string{
		"https://example.com/file.pdf",
		"https://bucket.s3.us-east-2.amazonaws.com/",
		"::not a url",
	} {
		_, _, err := ParseObjectURL(raw)
		assert.Error(t, err, raw)
	}
}
