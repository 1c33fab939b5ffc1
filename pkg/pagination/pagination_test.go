package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Defaults(t *testing.T) {
	params, err := Parse("", "")

	assert.NoError(t, err)
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestParse_OffsetDerivation(t *testing.T) {
	params, err := Parse("3", "25")

	assert.NoError(t, err)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 25, params.Limit)
	assert.Equal(t, 50, params.Offset)
}

func TestParse_ClampsLimit(t *testing.T) {
	params, err := Parse("1", "500")
	assert.NoError(t, err)
	assert.Equal(t, MaxLimit, params.Limit)

	params, err = Parse("1", "0")
	assert.NoError(t, err)
	assert.Equal(t, MinLimit, params.Limit)
}

func TestParse_NegativePageFallsBack(t *testing.T) {
	params, err := Parse("-4", "10")

	assert.NoError(t, err)
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, 0, params.Offset)
}

func TestParse_RejectsNonNumeric(t *testing.T) {
	_, err := Parse("abc", "")
	assert.Error(t, err)

	_, err = Parse("", "lots")
	assert.Error(t, err)
}
