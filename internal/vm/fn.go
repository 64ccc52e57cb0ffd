package vm

import (
	"unsafe"

	"finch/internal/bytecode"
)

var (
	fnSize         = int(unsafe.Sizeof(ObjFn{}))
	fnDebugSize    = int(unsafe.Sizeof(FnDebug{}))
	closureSize    = int(unsafe.Sizeof(ObjClosure{}))
	upvalueSize    = int(unsafe.Sizeof(ObjUpvalue{}))
	upvaluePtrSize = int(unsafe.Sizeof((*ObjUpvalue)(nil)))
	intSize        = int(unsafe.Sizeof(int(0)))
)

// NewFunction creates a function object. The constant pool is copied; the
// chunk is taken over as-is, including its source line table.
func (vm *VM) NewFunction(module *ObjModule, constants []Value,
	numUpvalues, arity int, chunk *bytecode.Chunk,
	sourcePath *ObjString, name string) *ObjFn {

	// Allocate the tail storage before the function object so a
	// collection triggered here can't free a half-initialised function.
	var copiedConstants []Value
	if len(constants) > 0 {
		vm.allocateArray(valueSize, len(constants))
		copiedConstants = make([]Value, len(constants))
		copy(copiedConstants, constants)
	}

	vm.allocate(fnDebugSize + len(name))
	debug := &FnDebug{SourcePath: sourcePath, Name: name}

	// The function takes ownership of the chunk's storage.
	vm.allocate(len(chunk.Code) + len(chunk.Lines)*intSize)

	vm.allocate(fnSize)
	fn := &ObjFn{
		Chunk:       chunk,
		Constants:   copiedConstants,
		Module:      module,
		NumUpvalues: numUpvalues,
		Arity:       arity,
		Debug:       debug,
	}
	vm.initObj(fn, KindFn, vm.FnClass)
	return fn
}

// NewClosure creates a closure over fn with an empty upvalue array. The
// array is cleared so a collection between creating the closure and
// populating the upvalues sees valid pointers.
func (vm *VM) NewClosure(fn *ObjFn) *ObjClosure {
	vm.allocateFlex(closureSize, upvaluePtrSize, fn.NumUpvalues)
	closure := &ObjClosure{
		Fn:       fn,
		Upvalues: make([]*ObjUpvalue, fn.NumUpvalues),
	}
	vm.initObj(closure, KindClosure, vm.FnClass)
	return closure
}

// NewUpvalue creates an open upvalue pointing at value.
func (vm *VM) NewUpvalue(value *Value) *ObjUpvalue {
	vm.allocate(upvalueSize)

	// Upvalues are never used as first-class objects, so they have no
	// class.
	upvalue := &ObjUpvalue{Value: value, Closed: NullVal}
	vm.initObj(upvalue, KindUpvalue, nil)
	return upvalue
}
