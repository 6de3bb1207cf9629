package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		depth    string
		wantErrs map[string][]string
		want     int
	}{
		{
			name:  "valid",
			url:   "https://example.com/start",
			depth: "3",
			want:  3,
		},
		{
			name:  "depth zero",
			url:   "http://example.com",
			depth: " 0 ",
			want:  0,
		},
		{
			name:  "missing everything",
			url:   "",
			depth: "",
			wantErrs: map[string][]string{
				"url":   {"The url field is required."},
				"depth": {"The depth field is required."},
			},
		},
		{
			name:  "not a url",
			url:   "example",
			depth: "1",
			wantErrs: map[string][]string{
				"url": {"The url must be a valid URL."},
			},
		},
		{
			name:  "mailto is not crawlable",
			url:   "mailto:someone@example.com",
			depth: "1",
			wantErrs: map[string][]string{
				"url": {"The url must be a valid URL."},
			},
		},
		{
			name:  "depth not an integer",
			url:   "https://example.com",
			depth: "two",
			wantErrs: map[string][]string{
				"depth": {"The depth must be an integer."},
			},
		},
		{
			name:  "negative depth",
			url:   "https://example.com",
			depth: "-2",
			wantErrs: map[string][]string{
				"depth": {"The depth must be at least 0."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.url, tt.depth)

			if tt.wantErrs == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.want, req.MaxDepth())
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErrs, verr.Fields)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := ParseRequest("", "x")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "The url field is required.", verr.Message())
	assert.Contains(t, verr.Error(), "The depth must be an integer.")
}
