package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, object, err := ParseURI("gs://ledgermatch-docs/statements/2026/01/doc-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ledgermatch-docs", bucket)
	assert.Equal(t, "statements/2026/01/doc-1.pdf", object)
}

func TestParseURI_Invalid(t *testing.T) {
	cases := []string{
		"",
		"http://bucket/object",
		"gs://",
		"gs://bucket-only",
		"gs://bucket/",
		"gs:///object",
	}
	for _, uri := range cases {
		_, _, err := ParseURI(uri)
		assert.Error(t, err, "uri %q", uri)
	}
}

func TestNewGCS_RequiresBucket(t *testing.T) {
	_, err := NewGCS("")
	assert.Error(t, err)

	g, err := NewGCS("ledgermatch-docs")
	require.NoError(t, err)
	assert.NotNil(t, g)
}
