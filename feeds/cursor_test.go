package feeds_test

import (
	"testing"

	"canter/feeds"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor feeds.Cursor
	}{
		{
			name:   "typical key",
			cursor: feeds.Cursor{Anchor: 1700000100, CreatedAt: 1700000000, ID: 42, Score: 1.25},
		},
		{
			name:   "large ids",
			cursor: feeds.Cursor{Anchor: 1700000100, CreatedAt: 1699999999, ID: 1<<62 + 7, Score: 0.9166666666666666},
		},
		{
			name:   "tiny score",
			cursor: feeds.Cursor{Anchor: 1700000100, CreatedAt: 1700000000, ID: 7, Score: 3.5e-12},
		},
		{
			name:   "anchor only",
			cursor: feeds.Cursor{Anchor: 1700000100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := feeds.EncodeCursor(tt.cursor)
			decoded, err := feeds.DecodeCursor(token)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor, decoded)

			// One encode/decode cycle must be exact
			assert.Equal(t, token, feeds.EncodeCursor(decoded))
		})
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := feeds.DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, cursor.IsZero())
	assert.Zero(t, cursor.Anchor)
}

func TestDecodeCursorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-cursor"},
		{name: "unknown version", token: "v9.MTIzLjQ1Ni43ODk"},
		{name: "bad base64", token: "v1.!!!"},
		{name: "missing fields", token: "v1.MTIzNDU"},
		// base64("1.2.3"): an int-only key without the score tail
		{name: "missing score", token: "v1.MS4yLjM"},
		{name: "non numeric fields", token: "v1.YS5iLmMuZA"},
		// base64("1.2.3.x"): score tail is not a float
		{name: "non numeric score", token: "v1.MS4yLjMueA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feeds.DecodeCursor(tt.token)
			assert.ErrorIs(t, err, feeds.ErrInvalidArgument)
		})
	}
}
