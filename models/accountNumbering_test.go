package models

import (
	"testing"

	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildRange(t *testing.T) {
	cases := []struct {
		parent string
		want   NumberRange
	}{
		{"3", NumberRange{Start: 31, End: 39, Step: 1, ChildLength: 2}},
		{"1", NumberRange{Start: 11, End: 19, Step: 1, ChildLength: 2}},
		{"11", NumberRange{Start: 110, End: 190, Step: 10, ChildLength: 3}},
		{"12", NumberRange{Start: 120, End: 200, Step: 10, ChildLength: 3}},
		{"110", NumberRange{Start: 1100, End: 1190, Step: 10, ChildLength: 4}},
		{"120", NumberRange{Start: 1200, End: 1290, Step: 10, ChildLength: 4}},
		{"1100", NumberRange{Start: 1100000, End: 1100999, Step: 1, ChildLength: 7}},
		{"1200", NumberRange{Start: 1200000, End: 1200999, Step: 1, ChildLength: 7}},
		{"7", NumberRange{Start: 71, End: 79, Step: 1, ChildLength: 2}},
		{"1100000", NumberRange{Start: 11000000, End: 11000009, Step: 1, ChildLength: 8}},
	}
	for _, c := range cases {
		got, err := ChildRange(c.parent)
		require.NoError(t, err, "parent %s", c.parent)
		assert.Equal(t, c.want, got, "parent %s", c.parent)
	}
}

func TestChildRangeRejectsNonNumericCode(t *testing.T) {
	_, err := ChildRange("12A")
	require.Error(t, err)
	var integrityErr *utils.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, "12A", integrityErr.Code)
}

func TestNextAvailableInAppendsPastHighestUsed(t *testing.T) {
	r, err := ChildRange("11")
	require.NoError(t, err)

	// untouched range starts at the bottom
	n, err := nextAvailableIn(r, nil, true)
	require.NoError(t, err)
	assert.Equal(t, int64(110), n)

	// append past the highest used, honoring the step
	n, err = nextAvailableIn(r, []int64{110, 120}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(130), n)

	// gaps are not reused: 110 free but 150 used means next is 160
	n, err = nextAvailableIn(r, []int64{150}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(160), n)
}

func TestNextAvailableInWithoutSpacing(t *testing.T) {
	r, err := ChildRange("11")
	require.NoError(t, err)

	n, err := nextAvailableIn(r, []int64{110}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(111), n)
}

func TestNextAvailableInCapacityError(t *testing.T) {
	r, err := ChildRange("3")
	require.NoError(t, err)

	_, err = nextAvailableIn(r, []int64{39}, true)
	require.Error(t, err)
	var capErr *utils.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "account number range", capErr.Scope)
}

func TestNextGapInPacksDensely(t *testing.T) {
	r := NumberRange{Start: 1200, End: 1289, Step: 1, ChildLength: 4}

	n, err := nextGapIn(r, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)

	// freed slots are reused
	n, err = nextGapIn(r, []int64{1200, 1202, 1203})
	require.NoError(t, err)
	assert.Equal(t, int64(1201), n)

	full := make([]int64, 0, 90)
	for v := r.Start; v <= r.End; v++ {
		full = append(full, v)
	}
	_, err = nextGapIn(r, full)
	var capErr *utils.CapacityError
	require.ErrorAs(t, err, &capErr)
}

func TestFormatCodePadsToLength(t *testing.T) {
	assert.Equal(t, "110", formatCode(110, 3))
	assert.Equal(t, "1100007", formatCode(1100007, 7))
	assert.Equal(t, "0042", formatCode(42, 4))
}

func TestMemoChildNumber(t *testing.T) {
	assert.Equal(t, "7120", MemoChildNumber("120"))
	assert.Equal(t, "71200000", MemoChildNumber("1200000"))
	assert.True(t, IsMemoCode("7120"))
	assert.False(t, IsMemoCode("120"))
	assert.False(t, IsMemoCode(""))
}
