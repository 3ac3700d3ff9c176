package zia

import (
	"math"
	"strconv"
)

type ValueType uint8

const (
	ValBool ValueType = iota
	ValNil
	ValNumber
	ValObj
)

func (t ValueType) String() string {
	return []string{"booleen", "nul", "nombre", "objet"}[t]
}

// Value is the tagged union manipulated by the VM. It is copied by value.
type Value struct {
	kind ValueType
	b    bool
	n    float64
	o    Obj
}

func BoolValue(b bool) Value      { return Value{kind: ValBool, b: b} }
func NilValue() Value             { return Value{kind: ValNil} }
func NumberValue(n float64) Value { return Value{kind: ValNumber, n: n} }
func ObjValue(o Obj) Value        { return Value{kind: ValObj, o: o} }
func (v Value) Kind() ValueType   { return v.kind }
func (v Value) IsBool() bool      { return v.kind == ValBool }
func (v Value) IsNil() bool       { return v.kind == ValNil }
func (v Value) IsNumber() bool    { return v.kind == ValNumber }
func (v Value) IsObj() bool       { return v.kind == ValObj }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsObj() Obj        { return v.o }

func (v Value) isObjType(t ObjType) bool {
	return v.kind == ValObj && v.o.Type() == t
}

func (v Value) IsString() bool   { return v.isObjType(ObjString) }
func (v Value) IsFunction() bool { return v.isObjType(ObjFunction) }
func (v Value) IsClosure() bool  { return v.isObjType(ObjClosure) }
func (v Value) IsNative() bool   { return v.isObjType(ObjNative) }

func (v Value) AsString() *StringObj     { return v.o.(*StringObj) }
func (v Value) AsFunction() *FunctionObj { return v.o.(*FunctionObj) }
func (v Value) AsClosure() *ClosureObj   { return v.o.(*ClosureObj) }
func (v Value) AsNative() *NativeObj     { return v.o.(*NativeObj) }

// IsFalsey reports whether v counts as false in a condition: only nul
// and faux do.
func (v Value) IsFalsey() bool {
	return v.kind == ValNil || (v.kind == ValBool && !v.b)
}

// TypeName is the name reported by the type() native and in errors.
func (v Value) TypeName() string {
	switch v.kind {
	case ValBool:
		return "booleen"
	case ValNil:
		return "nul"
	case ValNumber:
		return "nombre"
	}
	switch v.o.Type() {
	case ObjString:
		return "chaine"
	case ObjFunction, ObjClosure, ObjNative:
		return "fonction"
	}
	return "objet"
}

func (v Value) String() string {
	switch v.kind {
	case ValBool:
		if v.b {
			return "vrai"
		}
		return "faux"
	case ValNil:
		return "nul"
	case ValNumber:
		return FormatNumber(v.n)
	}
	return v.o.String()
}

// FormatNumber prints like C's %g: six significant digits, trailing zeros
// removed.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', 6, 64)
}

// ValuesEqual compares primitives structurally and objects by identity.
// Interning makes identity equal to content equality for strings.
func ValuesEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case ValBool:
		return a.b == b.b
	case ValNil:
		return true
	case ValNumber:
		return a.n == b.n
	case ValObj:
		return a.o == b.o
	}
	return false
}
