package vm

import (
	"math"

	"finch/internal/errors"
)

// ValueType tags the representation of a Value.
//
// Values use the tagged-union encoding: a tag plus a number/object payload.
// The alternative NaN-boxed encoding packs pointers into quiet-NaN bit
// patterns, which would force object handles behind an extra indirection
// under the host's precise GC, so it is not used here. The predicate and
// accessor surface is identical either way.
type ValueType byte

const (
	ValFalse ValueType = iota
	ValNull
	ValNum
	ValTrue

	// ValUndefined is an internal sentinel. It is never visible to user
	// code; the map uses it to mark absent keys.
	ValUndefined

	ValObj
)

// Value is the uniform representation of every value in the runtime:
// primitives carried inline, heap objects by reference.
type Value struct {
	Type ValueType
	Num  float64
	Obj  Obj
}

var (
	FalseVal     = Value{Type: ValFalse}
	NullVal      = Value{Type: ValNull}
	TrueVal      = Value{Type: ValTrue}
	UndefinedVal = Value{Type: ValUndefined}
)

// NumValue boxes a number.
func NumValue(num float64) Value {
	return Value{Type: ValNum, Num: num}
}

// ObjValue boxes a heap object reference.
func ObjValue(obj Obj) Value {
	return Value{Type: ValObj, Obj: obj}
}

// BoolValue boxes a bool.
func BoolValue(b bool) Value {
	if b {
		return TrueVal
	}
	return FalseVal
}

func (v Value) IsNum() bool       { return v.Type == ValNum }
func (v Value) IsObj() bool       { return v.Type == ValObj }
func (v Value) IsNull() bool      { return v.Type == ValNull }
func (v Value) IsTrue() bool      { return v.Type == ValTrue }
func (v Value) IsFalse() bool     { return v.Type == ValFalse }
func (v Value) IsUndefined() bool { return v.Type == ValUndefined }

// IsBool reports whether v is true or false.
func (v Value) IsBool() bool { return v.Type == ValTrue || v.Type == ValFalse }

// AsNum returns the number payload.
func (v Value) AsNum() float64 { return v.Num }

// AsObj returns the object payload.
func (v Value) AsObj() Obj { return v.Obj }

// AsString returns the payload as a string object.
func (v Value) AsString() *ObjString { return v.Obj.(*ObjString) }

// AsClass returns the payload as a class object.
func (v Value) AsClass() *ObjClass { return v.Obj.(*ObjClass) }

// AsRange returns the payload as a range object.
func (v Value) AsRange() *ObjRange { return v.Obj.(*ObjRange) }

// ValuesSame reports strict identity: same tag, and for numbers IEEE-754
// equality (NaN != NaN, -0 == +0), for objects reference identity.
func ValuesSame(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == ValNum {
		return a.Num == b.Num
	}
	return a.Obj == b.Obj
}

// ValuesEqual reports equality: identity, or structural equality for the
// immutable object kinds (strings and ranges).
func ValuesEqual(a, b Value) bool {
	if ValuesSame(a, b) {
		return true
	}

	// Only heap-allocated immutable objects can still compare equal.
	if !a.IsObj() || !b.IsObj() {
		return false
	}

	aObj := a.AsObj()
	bObj := b.AsObj()
	if aObj.Header().Kind != bObj.Header().Kind {
		return false
	}

	switch aa := aObj.(type) {
	case *ObjRange:
		bb := bObj.(*ObjRange)
		return aa.From == bb.From && aa.To == bb.To &&
			aa.IsInclusive == bb.IsInclusive

	case *ObjString:
		bb := bObj.(*ObjString)
		return len(aa.Value) == len(bb.Value) && aa.Hash == bb.Hash &&
			string(aa.Value) == string(bb.Value)

	default:
		// All other types are only equal if they are the same object.
		return false
	}
}

// hashNumber hashes the raw bits of a number. Note that this does not
// canonicalise -0 or NaN payloads.
func hashNumber(num float64) uint32 {
	bits := math.Float64bits(num)
	return uint32(bits) ^ uint32(bits>>32)
}

func hashObject(obj Obj) uint32 {
	switch o := obj.(type) {
	case *ObjClass:
		// Classes just use their name.
		return hashObject(o.Name)

	case *ObjFiber:
		return o.ID

	case *ObjRange:
		return hashNumber(o.From) ^ hashNumber(o.To)

	case *ObjString:
		return o.Hash

	default:
		panic(errors.NewFault(errors.UnhashableValue,
			"only immutable objects can be hashed (kind %d)",
			obj.Header().Kind))
	}
}

// HashValue hashes a value of one of the hashable kinds: null, bool, num,
// string, class, range, or fiber. Hashing anything else is a caller bug.
func HashValue(value Value) uint32 {
	switch value.Type {
	case ValFalse:
		return 0
	case ValNull:
		return 1
	case ValTrue:
		return 2
	case ValNum:
		return hashNumber(value.Num)
	case ValObj:
		return hashObject(value.Obj)
	default:
		panic(errors.NewFault(errors.UnhashableValue,
			"cannot hash an undefined value"))
	}
}

// GetClass returns the class of any value, including primitives.
func (vm *VM) GetClass(value Value) *ObjClass {
	switch value.Type {
	case ValFalse, ValTrue:
		return vm.BoolClass
	case ValNull:
		return vm.NullClass
	case ValNum:
		return vm.NumClass
	case ValObj:
		return value.Obj.Header().Class
	default:
		panic(errors.NewFault(errors.AssertionFault,
			"undefined value has no class"))
	}
}
