package types

// BasicKind describes the kind of basic type.
type BasicKind int

const (
	Invalid BasicKind = iota // invalid type

	Void    // no value
	Bool    // 1-bit integer
	Int8    // 8-bit signed integer
	Int32   // 32-bit signed integer (default int)
	Int64   // 64-bit signed integer (address size)
	Float32 // 32-bit IEEE 754 floating point
	Float64 // 64-bit IEEE 754 floating point
	Label   // basic block label
	Undef   // undefined/unknown type
)

// BasicInfo describes properties of a basic type.
type BasicInfo int

const (
	IsBoolean BasicInfo = 1 << iota
	isIntegerFlag
	isFloatFlag
	isNumericFlag = isIntegerFlag | isFloatFlag
)

// Basic represents a primitive IR type.
type Basic struct {
	typ
	kind BasicKind
	info BasicInfo
	name string
}

// Kind returns the kind of the basic type.
func (b *Basic) Kind() BasicKind {
	return b.kind
}

// Info returns information about the basic type.
func (b *Basic) Info() BasicInfo {
	return b.info
}

// String implements Type.
func (b *Basic) String() string {
	return b.name
}

// Typ holds the predeclared basic types, indexed by BasicKind.
// Typ[Invalid] is nil, representing an invalid type.
var Typ = []*Basic{
	Invalid: nil,
	Void:    {kind: Void, name: "void"},
	Bool:    {kind: Bool, info: IsBoolean | isIntegerFlag, name: "i1"},
	Int8:    {kind: Int8, info: isIntegerFlag, name: "i8"},
	Int32:   {kind: Int32, info: isIntegerFlag, name: "i32"},
	Int64:   {kind: Int64, info: isIntegerFlag, name: "i64"},
	Float32: {kind: Float32, info: isFloatFlag, name: "float"},
	Float64: {kind: Float64, info: isFloatFlag, name: "double"},
	Label:   {kind: Label, name: "label"},
	Undef:   {kind: Undef, name: "undef"},
}
