package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("not-base64!")
	require.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)
	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)
	_, err = ParseDirection("sideways")
	require.Error(t, err)
}

func TestTrimProducesNextCursor(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	type row struct {
		id uuid.UUID
		at time.Time
	}
	rows := []row{{uuid.New(), base}, {uuid.New(), base.Add(-time.Minute)}, {uuid.New(), base.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	c, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, c.ID)

	last := Trim(rows[:2], 2, cursorOf)
	assert.Empty(t, last.NextCursor)

	mapped := Map(page, func(r row) string { return r.id.String() })
	assert.Equal(t, page.NextCursor, mapped.NextCursor)
	assert.Equal(t, rows[0].id.String(), mapped.Items[0])
}

func TestCursorCarriesSortValue(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), ID: uuid.New(), Value: "Gown | red"}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.Equal(t, in.Value, out.Value)
	assert.Equal(t, in.ID, out.ID)
}

func TestParseSort(t *testing.T) {
	allowed := map[string]string{"title": "title", "start_time": "start_date"}

	col, err := ParseSort("", allowed)
	require.NoError(t, err)
	assert.Equal(t, CreatedAt, col)

	col, err = ParseSort(" Start_Time ", allowed)
	require.NoError(t, err)
	assert.Equal(t, "start_date", col)

	_, err = ParseSort("title; DROP TABLE items", allowed)
	require.Error(t, err)
}
