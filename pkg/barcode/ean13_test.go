package barcode

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKnownValue(t *testing.T) {
	code, err := Generate("123456789012")
	require.NoError(t, err)
	assert.Equal(t, "1234567890128", code)
	assert.True(t, Valid(code))
}

func TestGenerateKeepsUnpaddedInput(t *testing.T) {
	// padded to 000000000123: odd=0+0+0+0+0+2=2, even=0+0+0+0+1+3=4 -> 2+12=14 -> 6
	code, err := Generate("123")
	require.NoError(t, err)
	assert.Equal(t, "1236", code)
	assert.Len(t, code, 4)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := Generate("")
	assert.ErrorIs(t, err, ErrEmptyRaw)

	_, err = Generate("12a4")
	assert.ErrorIs(t, err, ErrInvalidRaw)

	_, err = Generate("1234567890123")
	assert.ErrorIs(t, err, ErrInvalidRaw)
}

func TestComputeEAN13GuardsEmpty(t *testing.T) {
	assert.Equal(t, "", ComputeEAN13(""))
	assert.Equal(t, "", ComputeEAN13("abc"))
	assert.Equal(t, "4800016644290", ComputeEAN13("480001664429"))
}

func TestComputeEAN13Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		length := rng.Intn(RawLength) + 1
		var b strings.Builder
		for i := 0; i < length; i++ {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
		raw := b.String()

		code := ComputeEAN13(raw)
		require.Len(t, code, len(raw)+1, raw)
		require.True(t, strings.HasPrefix(code, raw), raw)
		require.True(t, IsDigits(code[len(raw):]), raw)

		if length == RawLength {
			sum := 0
			for i := 0; i < RawLength; i++ {
				d := int(raw[i] - '0')
				if i%2 == 0 {
					sum += d
				} else {
					sum += 3 * d
				}
			}
			check, _ := strconv.Atoi(code[RawLength:])
			require.Zero(t, (sum+check)%10, raw)
			require.True(t, Valid(code), raw)
		}
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("4006381333931"))
	assert.False(t, Valid("4006381333932"))
	assert.False(t, Valid("400638133393"))
	assert.False(t, Valid("40063813339x1"))
}
