package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-5))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestLimitWithBuffer(t *testing.T) {
	assert.Equal(t, DefaultLimit+1, LimitWithBuffer(0))
	assert.Equal(t, 11, LimitWithBuffer(10))
	assert.Equal(t, MaxLimit+1, LimitWithBuffer(500))
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2025, 8, 14, 9, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := Decode(cursor.Encode())
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(cursor.CreatedAt))
	assert.Equal(t, cursor.ID, parsed.ID)
}

func TestDecodeEmpty(t *testing.T) {
	parsed, err := Decode("   ")
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	encode := func(payload string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(payload))
	}
	cases := map[string]string{
		"not base64":    "not-base64!!",
		"no separator":  encode("1755163800123456789" + uuid.NewString()),
		"bad uuid":      encode("1755163800123456789.not-a-uuid"),
		"bad timestamp": encode("not-nanos." + uuid.NewString()),
	}
	for name, value := range cases {
		_, err := Decode(value)
		assert.Error(t, err, "case %s, cursor %q", name, value)
	}
}

func TestTrim(t *testing.T) {
	rows := make([]Cursor, 0, 11)
	base := time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 11; i++ {
		rows = append(rows, Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()})
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 10, identity)
	require.Len(t, page, 10)
	require.NotNil(t, next)
	assert.Equal(t, rows[10].ID, next.ID)
	assert.True(t, next.CreatedAt.Equal(rows[10].CreatedAt))

	// A page that came back at or under the limit has no extra row to drop.
	page, next = Trim(rows[:5], 10, identity)
	assert.Len(t, page, 5)
	assert.Nil(t, next)
}
