package codec

import (
	"errors"
	"math"
	"slices"
	"testing"

	graphErrors "github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/matryer/is"
)

func TestDecodeBuiltinTypes(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	v, err := r.Decode(Float, "17.25")
	is.NoErr(err)
	is.Equal(v, 17.25)

	v, err = r.Decode(Bool, "eTrue")
	is.NoErr(err)
	is.Equal(v, true)

	v, err = r.Decode(Int16, " -1200 ")
	is.NoErr(err)
	is.Equal(v, -1200)

	v, err = r.Decode(Vector4, "1, 2.5,-3,0")
	is.NoErr(err)
	is.Equal(v, Vec4{1, 2.5, -3, 0})

	v, err = r.Decode(Color, "255,128,0,255")
	is.NoErr(err)
	is.Equal(v, RGBA{255, 128, 0, 255})

	v, err = r.Decode("sInt32", "42")
	is.NoErr(err)
	is.Equal(v, 42)
}

func TestThatMalformedNumbersFailToDecode(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	_, err := r.Decode(Float, "1.2.3")
	is.True(errors.Is(err, graphErrors.ErrDecode))

	_, err = r.Decode(Int8, "300")
	is.True(errors.Is(err, graphErrors.ErrDecode)) // out of range

	_, err = r.Decode(Vector4, "1,2,3")
	is.True(errors.Is(err, graphErrors.ErrDecode)) // too few components

	_, err = r.Decode(Matrix4x4, "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,x")
	is.True(errors.Is(err, graphErrors.ErrDecode))
}

func TestThatUnknownTagsUseIdentityConversion(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	v, err := r.Decode("cGlobalScriptEntry", "not a number")
	is.NoErr(err)
	is.Equal(v, "not a number")

	text, err := r.Encode("cGlobalScriptEntry", "not a number")
	is.NoErr(err)
	is.Equal(text, "not a number")

	is.True(!r.Known("cGlobalScriptEntry"))
}

func TestRoundTripOfBuiltinTypes(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	values := map[string]any{
		Float:     0.1,
		Bool:      false,
		String:    "Hello, world",
		Int8:      -128,
		Uint32:    4294967295,
		Vector3:   Vec3{0.5, -1e-7, 1234567.875},
		Vector4:   Vec4{1, 2, 3, 4},
		Matrix4x4: IdentityMatrix(),
		Color:     RGBA{1, 2, 3, 4},
	}

	for tag, value := range values {
		text, err := r.Encode(tag, value)
		is.NoErr(err)

		decoded, err := r.Decode(tag, text)
		is.NoErr(err)
		is.Equal(decoded, value)
	}
}

func TestThatEncodingTheWrongGoTypeFails(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	_, err := r.Encode(Bool, "true")
	is.True(errors.Is(err, graphErrors.ErrDecode))

	_, err = r.Encode(Uint8, 256)
	is.True(errors.Is(err, graphErrors.ErrDecode))
}

func TestThatHugeFloatsAreRoundedToSinglePrecisionText(t *testing.T) {
	is := is.New(t)

	maxFloat32 := float64(math.MaxFloat32)
	is.Equal(FormatFloat(maxFloat32), "3.4028235e+38")
	is.Equal(FormatFloat(-maxFloat32), "-3.4028235e+38")
	is.Equal(FormatFloat(1.5e37), "1.5e+37")
}

func TestThatHugeFloatEncodingIsIdempotentAfterOnePass(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	first, err := r.Encode(Float, 9.999999999e37)
	is.NoErr(err)

	decoded, err := r.Decode(Float, first)
	is.NoErr(err)

	second, err := r.Encode(Float, decoded)
	is.NoErr(err)

	is.Equal(first, second)
	is.Equal(first, "1e+38")
}

func TestThatSmallFloatsUseShortestText(t *testing.T) {
	is := is.New(t)

	is.Equal(FormatFloat(0), "0")
	is.Equal(FormatFloat(math.Copysign(0, -1)), "0")
	is.Equal(FormatFloat(2.5), "2.5")
	is.Equal(FormatFloat(1e36), "1e+36")
}

func TestThatDecodeRecordsDiscoveredTypes(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	_, _ = r.Decode(Float, "1")
	_, _ = r.Decode("cTroopBase", "x")
	_, _ = r.Decode(Float, "not a float")

	is.Equal(r.DiscoveredTypes(), []string{"cTroopBase", Float})
	is.True(!slices.Contains(r.DiscoveredTypes(), Bool))
}

func TestRegisterAndAlias(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Register("upper", Codec{
		Decode: func(text string) (any, error) { return text + "!", nil },
		Encode: func(value any) (string, error) { return value.(string) + "?", nil },
	})
	r.Alias("shout", "upper")

	v, err := r.Decode("shout", "hey")
	is.NoErr(err)
	is.Equal(v, "hey!")

	text, err := r.Encode("shout", "hey")
	is.NoErr(err)
	is.Equal(text, "hey?")
}
