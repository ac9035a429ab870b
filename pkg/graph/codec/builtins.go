package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diwise/levelstore/pkg/graph/errors"
)

// gameAliases maps the tags written by the game's own tooling onto the builtin codecs
var gameAliases = map[string]string{
	"cFxString8":  String,
	"cFxString16": String,
	"sInt8":       Int8,
	"sInt16":      Int16,
	"sInt32":      Int32,
	"sUInt8":      Uint8,
	"sUInt16":     Uint16,
	"sUInt32":     Uint32,
	"eBool":       Bool,
	"cVector":     Vector3,
	"cVector4":    Vector4,
	"cMatrix4x4":  Matrix4x4,
	"cU8Color":    Color,
}

func registerBuiltins(r *Registry) {
	r.codecs[Float] = Codec{Decode: decodeFloat, Encode: encodeFloat}
	r.codecs[Bool] = Codec{Decode: decodeBool, Encode: encodeBool}
	r.codecs[String] = Codec{Decode: decodeString, Encode: encodeString}

	r.codecs[Int8] = intCodec(Int8, math.MinInt8, math.MaxInt8)
	r.codecs[Int16] = intCodec(Int16, math.MinInt16, math.MaxInt16)
	r.codecs[Int32] = intCodec(Int32, math.MinInt32, math.MaxInt32)
	r.codecs[Uint8] = intCodec(Uint8, 0, math.MaxUint8)
	r.codecs[Uint16] = intCodec(Uint16, 0, math.MaxUint16)
	r.codecs[Uint32] = intCodec(Uint32, 0, math.MaxUint32)

	r.codecs[Vector3] = Codec{Decode: decodeVec3, Encode: encodeVec3}
	r.codecs[Vector4] = Codec{Decode: decodeVec4, Encode: encodeVec4}
	r.codecs[Matrix4x4] = Codec{Decode: decodeMat4, Encode: encodeMat4}
	r.codecs[Color] = Codec{Decode: decodeColor, Encode: encodeColor}

	for alias, tag := range gameAliases {
		r.aliases[alias] = tag
	}
}

func decodeFloat(text string) (any, error) {
	f, err := ParseFloat(text)
	if err != nil {
		return nil, errors.NewDecodeError(Float, text, err)
	}
	return f, nil
}

func encodeFloat(value any) (string, error) {
	f, ok := toFloat(value)
	if !ok {
		return "", errors.NewEncodeError(Float, value)
	}
	return FormatFloat(f), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

func decodeBool(text string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "etrue", "1":
		return true, nil
	case "false", "efalse", "0":
		return false, nil
	}
	return nil, errors.NewDecodeError(Bool, text, nil)
}

func encodeBool(value any) (string, error) {
	b, ok := value.(bool)
	if !ok {
		return "", errors.NewEncodeError(Bool, value)
	}
	return strconv.FormatBool(b), nil
}

func decodeString(text string) (any, error) {
	return text, nil
}

func encodeString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewEncodeError(String, value)
	}
	return s, nil
}

func intCodec(typeTag string, lo, hi int64) Codec {
	inRange := func(i int64) bool {
		return i >= lo && i <= hi
	}

	return Codec{
		Decode: func(text string) (any, error) {
			i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if err != nil {
				return nil, errors.NewDecodeError(typeTag, text, err)
			}
			if !inRange(i) {
				return nil, errors.NewDecodeError(typeTag, text, fmt.Errorf("value out of range [%d, %d]", lo, hi))
			}
			return int(i), nil
		},
		Encode: func(value any) (string, error) {
			var i int64

			switch v := value.(type) {
			case int:
				i = int64(v)
			case int8:
				i = int64(v)
			case int16:
				i = int64(v)
			case int32:
				i = int64(v)
			case int64:
				i = v
			case uint8:
				i = int64(v)
			case uint16:
				i = int64(v)
			case uint32:
				i = int64(v)
			default:
				return "", errors.NewEncodeError(typeTag, value)
			}

			if !inRange(i) {
				return "", errors.NewEncodeError(typeTag, value)
			}

			return strconv.FormatInt(i, 10), nil
		},
	}
}

func splitFloats(typeTag, text string, n int) ([]float64, error) {
	parts := strings.Split(text, ",")
	if len(parts) != n {
		return nil, errors.NewDecodeError(typeTag, text, fmt.Errorf("expected %d components, found %d", n, len(parts)))
	}

	values := make([]float64, n)
	for i, p := range parts {
		f, err := ParseFloat(p)
		if err != nil {
			return nil, errors.NewDecodeError(typeTag, text, err)
		}
		values[i] = f
	}

	return values, nil
}

func decodeVec3(text string) (any, error) {
	values, err := splitFloats(Vector3, text, 3)
	if err != nil {
		return nil, err
	}
	return Vec3([3]float64(values)), nil
}

func encodeVec3(value any) (string, error) {
	switch v := value.(type) {
	case Vec3:
		return v.String(), nil
	case [3]float64:
		return Vec3(v).String(), nil
	}
	return "", errors.NewEncodeError(Vector3, value)
}

func decodeVec4(text string) (any, error) {
	values, err := splitFloats(Vector4, text, 4)
	if err != nil {
		return nil, err
	}
	return Vec4([4]float64(values)), nil
}

func encodeVec4(value any) (string, error) {
	switch v := value.(type) {
	case Vec4:
		return v.String(), nil
	case [4]float64:
		return Vec4(v).String(), nil
	}
	return "", errors.NewEncodeError(Vector4, value)
}

func decodeMat4(text string) (any, error) {
	values, err := splitFloats(Matrix4x4, text, 16)
	if err != nil {
		return nil, err
	}
	return Mat4([16]float64(values)), nil
}

func encodeMat4(value any) (string, error) {
	switch v := value.(type) {
	case Mat4:
		return v.String(), nil
	case [16]float64:
		return Mat4(v).String(), nil
	}
	return "", errors.NewEncodeError(Matrix4x4, value)
}

func decodeColor(text string) (any, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 4 {
		return nil, errors.NewDecodeError(Color, text, fmt.Errorf("expected 4 components, found %d", len(parts)))
	}

	c := RGBA{}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, errors.NewDecodeError(Color, text, err)
		}
		c[i] = uint8(n)
	}

	return c, nil
}

func encodeColor(value any) (string, error) {
	switch v := value.(type) {
	case RGBA:
		return v.String(), nil
	case [4]uint8:
		return RGBA(v).String(), nil
	}
	return "", errors.NewEncodeError(Color, value)
}
