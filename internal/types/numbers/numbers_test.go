package numbers

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_ParseNativeAmount(t *testing.T) {
	t.Run("Should parse an exact amount within the decimal width", func(t *testing.T) {
		d, err := ParseNativeAmount("1.234567891", 9)
		assert.Nil(t, err)
		assert.Equal(t, "1.234567891", d.String())
	})
	t.Run("Should reject an amount with more fractional digits than the chain allows", func(t *testing.T) {
		_, err := ParseNativeAmount("1.2345678911", 9)
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrPrecisionLoss))
	})
	t.Run("Should reject a negative amount", func(t *testing.T) {
		_, err := ParseNativeAmount("-0.5", 9)
		assert.True(t, errors.Is(err, ErrNegativeAmount))
	})
	t.Run("Should reject garbage", func(t *testing.T) {
		_, err := ParseNativeAmount("1.2.3", 9)
		assert.True(t, errors.Is(err, ErrMalformedAmount))
	})
	t.Run("Should reject amounts wider than 38 significant digits", func(t *testing.T) {
		_, err := ParseNativeAmount("123456789012345678901234567890123456789", 18)
		assert.True(t, errors.Is(err, ErrPrecisionLoss))
	})
}

func Test_FromBaseUnits(t *testing.T) {
	t.Run("Should convert lamports to SOL", func(t *testing.T) {
		d, err := FromBaseUnits("1500000000", 9)
		assert.Nil(t, err)
		assert.Equal(t, "1.5", d.String())
	})
	t.Run("Should reject a fractional base-unit amount", func(t *testing.T) {
		_, err := FromBaseUnits("1.5", 9)
		assert.True(t, errors.Is(err, ErrMalformedAmount))
	})
	t.Run("Should reject a negative base-unit amount", func(t *testing.T) {
		_, err := FromBaseUnits("-1", 9)
		assert.True(t, errors.Is(err, ErrNegativeAmount))
	})
}
