package codec

import (
	"strconv"
	"strings"
)

const (
	Float     string = "float"
	Bool      string = "bool"
	String    string = "string"
	Int8      string = "int8"
	Int16     string = "int16"
	Int32     string = "int32"
	Uint8     string = "uint8"
	Uint16    string = "uint16"
	Uint32    string = "uint32"
	Vector3   string = "vector3"
	Vector4   string = "vector4"
	Matrix4x4 string = "matrix4x4"
	Color     string = "color"
)

// Vec3 is the decoded form of a vector3 field
type Vec3 [3]float64

func (v Vec3) String() string {
	return joinFloats(v[:])
}

// Vec4 is the decoded form of a vector4 field
type Vec4 [4]float64

func (v Vec4) String() string {
	return joinFloats(v[:])
}

// Mat4 is a row major 4x4 matrix. The translation lives in elements 12, 13 and 14.
type Mat4 [16]float64

func (m Mat4) String() string {
	return joinFloats(m[:])
}

// Translation returns the x, y and z offset of the transform
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

func IdentityMatrix() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// RGBA is the decoded form of a color field
type RGBA [4]uint8

func (c RGBA) String() string {
	parts := make([]string, len(c))
	for i := range c {
		parts[i] = strconv.Itoa(int(c[i]))
	}
	return strings.Join(parts, ",")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, f := range values {
		parts[i] = FormatFloat(f)
	}
	return strings.Join(parts, ",")
}
