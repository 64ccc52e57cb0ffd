package vm

import (
	"finch/internal/bytecode"
	"finch/internal/utils"
)

// ObjKind identifies the concrete type of a heap object.
type ObjKind byte

const (
	KindClass ObjKind = iota
	KindClosure
	KindFiber
	KindFn
	KindInstance
	KindList
	KindMap
	KindModule
	KindRange
	KindString
	KindUpvalue
)

// Obj is implemented by every heap object. Each kind embeds ObjHeader, so
// the interface is satisfied for free; the collector type-switches on the
// concrete kind.
type Obj interface {
	Header() *ObjHeader
}

// ObjHeader is the common prefix of every heap object: its kind, the mark
// bit, a back-pointer to the object's class (nil for modules and upvalues,
// and transiently nil during core bootstrap), and the link threading the
// VM's list of all objects.
type ObjHeader struct {
	Kind   ObjKind
	Class  *ObjClass
	marked bool
	next   Obj
}

// Header implements Obj.
func (h *ObjHeader) Header() *ObjHeader { return h }

// MethodType tags an entry in a class's method table.
type MethodType byte

const (
	// MethodNone marks an empty slot: the class does not implement the
	// method for that symbol.
	MethodNone MethodType = iota

	// MethodPrimitive is a method implemented in Go inside the VM.
	MethodPrimitive

	// MethodForeign is a method bound by the host application.
	MethodForeign

	// MethodBlock is a normal user-defined method backed by a function.
	MethodBlock
)

// Primitive is the signature of a built-in method. args[0] is the receiver.
type Primitive func(vm *VM, args []Value) Value

// ForeignMethodFn is the signature of a host-bound method.
type ForeignMethodFn func(vm *VM, args []Value)

// Method is one entry in a class's method table, indexed by the global
// method symbol.
type Method struct {
	Type      MethodType
	Primitive Primitive
	Foreign   ForeignMethodFn

	// Fn is the ObjFn or ObjClosure for a MethodBlock entry.
	Fn Obj
}

// ObjClass is a class. Every class has a metaclass as its header's class
// pointer; the root class Class is its own class's class.
type ObjClass struct {
	ObjHeader
	Superclass *ObjClass

	// NumFields includes fields inherited from superclasses.
	NumFields int

	// Methods is indexed by global method symbol. Unimplemented symbols
	// hold MethodNone entries.
	Methods utils.Buffer[Method]

	Name *ObjString
}

// ObjString is an immutable byte string. Hash is computed once at
// construction and never changes.
type ObjString struct {
	ObjHeader
	Hash  uint32
	Value []byte
}

// Length returns the string's byte length.
func (s *ObjString) Length() int { return len(s.Value) }

// String returns the bytes as a Go string.
func (s *ObjString) String() string { return string(s.Value) }

// ObjList is a growable sequence of values.
type ObjList struct {
	ObjHeader
	Elements utils.Buffer[Value]
}

// MapEntry is one slot in a map's entry array. An empty slot has an
// undefined key and a false value; a tombstone has an undefined key and a
// true value.
type MapEntry struct {
	Key   Value
	Value Value
}

// ObjMap is an open-addressed hash table with linear probing and
// tombstones.
type ObjMap struct {
	ObjHeader
	Count   int
	Entries []MapEntry
}

// Capacity returns the size of the entry array (0 or >= MinCapacity).
func (m *ObjMap) Capacity() int { return len(m.Entries) }

// ObjRange is a numeric range.
type ObjRange struct {
	ObjHeader
	From        float64
	To          float64
	IsInclusive bool
}

// FnDebug carries the debugging information for a function.
type FnDebug struct {
	// SourcePath is the module source path, or nil for synthesized
	// functions.
	SourcePath *ObjString

	// Name is the function's name as it appears in source.
	Name string
}

// ObjFn is a compiled function body: its bytecode with per-instruction
// source lines, constant pool, owning module, and signature facts.
type ObjFn struct {
	ObjHeader
	Chunk       *bytecode.Chunk
	Constants   []Value
	Module      *ObjModule
	NumUpvalues int
	Arity       int
	Debug       *FnDebug
}

// ObjClosure pairs a function with its captured upvalues.
type ObjClosure struct {
	ObjHeader
	Fn       *ObjFn
	Upvalues []*ObjUpvalue
}

// ObjUpvalue is a captured variable. While the variable is still on a
// fiber's stack the upvalue is open and Value points at the live slot; when
// the frame returns the value moves into Closed and Value points there.
type ObjUpvalue struct {
	ObjHeader

	// Value points at the variable this upvalue captures.
	Value *Value

	// Closed owns the value after the upvalue is closed.
	Closed Value

	// Next links the open upvalues of a fiber, ordered from the top of
	// the stack down.
	Next *ObjUpvalue
}

// Close moves the captured value into the upvalue's own storage.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Value
	u.Value = &u.Closed
}

// CallFrame is one invocation record on a fiber.
type CallFrame struct {
	// IP indexes the next instruction in the frame's function bytecode.
	IP int

	// Fn is the ObjFn or ObjClosure being executed.
	Fn Obj

	// StackStart is the index in the fiber's stack of the first slot
	// usable by this frame.
	StackStart int
}

// ObjFiber is a user-level coroutine: a value stack, a call-frame stack,
// the list of upvalues still pointing into the stack, and a link back to
// the fiber that ran it.
type ObjFiber struct {
	ObjHeader

	// ID is monotonically increasing per VM and doubles as the fiber's
	// hash code.
	ID uint32

	Stack    []Value
	StackTop int

	Frames    []CallFrame
	NumFrames int

	// OpenUpvalues heads the list of upvalues pointing into Stack.
	OpenUpvalues *ObjUpvalue

	// Caller is the fiber that ran this one, or nil.
	Caller *ObjFiber

	// Error holds the runtime error that aborted the fiber, or null.
	Error Value

	// CallerIsTrying is set when the caller invoked this fiber with a
	// try, so errors transfer to the caller instead of aborting.
	CallerIsTrying bool
}

// ObjModule is a module's top-level state: parallel name/value storage for
// its variables. Modules are not user-visible, so they have no class.
type ObjModule struct {
	ObjHeader
	VariableNames utils.SymbolTable
	Variables     utils.Buffer[Value]
	Name          *ObjString
}
