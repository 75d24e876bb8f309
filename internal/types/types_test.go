package types

import "testing"

func TestBasicIdentity(t *testing.T) {
	if !Identical(Typ[Int32], Typ[Int32]) {
		t.Error("i32 not identical to itself")
	}
	if Identical(Typ[Int32], Typ[Int64]) {
		t.Error("i32 identical to i64")
	}
	if Identical(Typ[Float32], Typ[Float64]) {
		t.Error("float identical to double")
	}
}

func TestPointerInterning(t *testing.T) {
	p1 := NewPointer(Typ[Int32])
	p2 := NewPointer(Typ[Int32])
	if p1 != p2 {
		t.Error("pointer types not interned")
	}
	if !Identical(p1, p2) {
		t.Error("interned pointers not identical")
	}
	if Identical(NewPointer(Typ[Int32]), NewPointer(Typ[Float32])) {
		t.Error("i32* identical to float*")
	}
}

func TestArrayStructuralEquality(t *testing.T) {
	a1 := NewArray(Typ[Int32], []int64{2, 3})
	a2 := NewArray(Typ[Int32], []int64{2, 3})
	a3 := NewArray(Typ[Int32], []int64{3, 2})

	if a1 != a2 {
		t.Error("array types not interned")
	}
	if Identical(a1, a3) {
		t.Error("[2 x [3 x i32]] identical to [3 x [2 x i32]]")
	}
	if a1.NumElems() != 6 {
		t.Errorf("NumElems = %d, want 6", a1.NumElems())
	}
	if got := a1.String(); got != "[2 x [3 x i32]]" {
		t.Errorf("String = %q", got)
	}
}

func TestFuncTypes(t *testing.T) {
	f1 := NewFunc(Typ[Int32], []Type{Typ[Int32], Typ[Float32]})
	f2 := NewFunc(Typ[Int32], []Type{Typ[Int32], Typ[Float32]})
	f3 := NewFunc(Typ[Void], []Type{Typ[Int32], Typ[Float32]})

	if f1 != f2 {
		t.Error("function types not interned")
	}
	if Identical(f1, f3) {
		t.Error("differing return types identical")
	}
	if got := f1.String(); got != "i32(i32, float)" {
		t.Errorf("String = %q", got)
	}
}

func TestPredicates(t *testing.T) {
	if !IsBool(Typ[Bool]) || !IsInteger(Typ[Bool]) {
		t.Error("bool predicates wrong")
	}
	if !IsInteger(Typ[Int64]) || IsFloat(Typ[Int64]) {
		t.Error("i64 predicates wrong")
	}
	if !IsFloat(Typ[Float64]) || !IsNumeric(Typ[Float64]) {
		t.Error("double predicates wrong")
	}
	if !IsPointer(NewPointer(Typ[Int8])) {
		t.Error("pointer predicate wrong")
	}
	if !IsVoid(Typ[Void]) || IsNumeric(Typ[Void]) {
		t.Error("void predicates wrong")
	}
}

func TestSizes(t *testing.T) {
	s := DefaultSizes
	cases := []struct {
		typ  Type
		want int64
	}{
		{Typ[Bool], 1}, // i1 stores as one byte
		{Typ[Int8], 1},
		{Typ[Int32], 4},
		{Typ[Int64], 8},
		{Typ[Float32], 4},
		{Typ[Float64], 8},
		{NewPointer(Typ[Int32]), 8},
		{NewArray(Typ[Int32], []int64{4, 2}), 32},
		{NewFunc(Typ[Void], nil), 8},
	}
	for _, c := range cases {
		if got := s.Sizeof(c.typ); got != c.want {
			t.Errorf("Sizeof(%s) = %d, want %d", c.typ, got, c.want)
		}
	}
}
