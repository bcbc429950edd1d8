package cellcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatRoundTrip(t *testing.T) {
	b := EncodeFloat(10.5, -3600)
	dec, err := Decode(b, Float)
	require.NoError(t, err)
	assert.Equal(t, Float, dec.Variant)
	assert.Equal(t, int32(-3600), dec.OffsetSecond)
	assert.InDelta(t, 10.5, dec.FloatValue, 0.0001)
}

func TestDictRoundTrip(t *testing.T) {
	in := map[string]interface{}{"foo": "bar", "count": float64(3)}
	b, err := EncodeDict(in, 7200)
	require.NoError(t, err)
	dec, err := Decode(b, Dict)
	require.NoError(t, err)
	assert.Equal(t, Dict, dec.Variant)
	assert.Equal(t, int32(7200), dec.OffsetSecond)
	assert.Equal(t, in, dec.DictValue)
}

func TestDecodeMismatch(t *testing.T) {
	b := EncodeFloat(1.0, 0)
	_, err := Decode(b, Dict)
	require.Error(t, err)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, Dict, mismatch.Expected)
	assert.Equal(t, Float, mismatch.Got)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, Float)
	require.Error(t, err)
}

func TestEncodeDictNilValue(t *testing.T) {
	b, err := EncodeDict(nil, 0)
	require.NoError(t, err)
	dec, err := Decode(b, Dict)
	require.NoError(t, err)
	assert.Empty(t, dec.DictValue)
}
