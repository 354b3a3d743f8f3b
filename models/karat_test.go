package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKaratValid(t *testing.T) {
	for _, k := range Karats {
		assert.True(t, k.Valid(), "%s", k)
	}
	assert.False(t, Karat(20).Valid())
	assert.False(t, Karat(0).Valid())
}

func TestNormalizeWeight(t *testing.T) {
	// 24k into a 21k book: weight * 24/21
	got := NormalizeWeight(d("7.000"), Karat24, Karat21)
	assert.True(t, got.Equal(d("8.000")), "got %s", got)

	// 18k into a 21k book: 10.5 * 18/21 = 9
	got = NormalizeWeight(d("10.500"), Karat18, Karat21)
	assert.True(t, got.Equal(d("9.000")), "got %s", got)

	// same grade is identity
	got = NormalizeWeight(d("3.141"), Karat21, Karat21)
	assert.True(t, got.Equal(d("3.141")), "got %s", got)
}

func TestDenormalizeWeightRoundTrips(t *testing.T) {
	main := NormalizeWeight(d("8.000"), Karat24, Karat21)
	back := DenormalizeWeight(main, Karat24, Karat21)
	assert.True(t, back.Sub(d("8.000")).Abs().LessThanOrEqual(WeightTolerance), "got %s", back)
}
