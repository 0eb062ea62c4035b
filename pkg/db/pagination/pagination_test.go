package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.Equal(t, "2026-01-02T03:04:05Z", cursor.CreatedAt)

	_, err = DecodeCursor("not base64!")
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := make([]*int, 0, 4)
	for i := 1; i <= 4; i++ {
		v := i
		items = append(items, &v)
	}
	extract := func(v *int) string { return strconv.Itoa(*v) }

	page, info := BuildCursorPageInfo(items, 3, extract)
	assert.Len(t, page, 3)
	assert.True(t, info.HasMore)
	assert.Equal(t, "3", info.NextPageToken)

	page, info = BuildCursorPageInfo(items[:2], 3, extract)
	assert.Len(t, page, 2)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
