package vm

import (
	"unsafe"

	"finch/internal/errors"
)

const (
	// fiberStackCapacity is the fixed size of a fiber's value stack.
	// Open upvalues hold pointers into it, so it never reallocates.
	fiberStackCapacity = 1024

	// fiberFramesCapacity is the fixed size of a fiber's call-frame
	// stack.
	fiberFramesCapacity = 256
)

var (
	fiberSize = int(unsafe.Sizeof(ObjFiber{}))
	frameSize = int(unsafe.Sizeof(CallFrame{}))
)

// NewFiber creates a fiber ready to execute fn (an ObjFn or ObjClosure).
func (vm *VM) NewFiber(fn Obj) *ObjFiber {
	vm.allocate(fiberSize +
		fiberStackCapacity*valueSize + fiberFramesCapacity*frameSize)
	fiber := &ObjFiber{
		Stack:  make([]Value, fiberStackCapacity),
		Frames: make([]CallFrame, fiberFramesCapacity),
	}
	vm.initObj(fiber, KindFiber, vm.FiberClass)

	fiber.ID = vm.nextFiberID
	vm.nextFiberID++

	fiber.Reset(fn)
	return fiber
}

// Reset rewinds the fiber to run fn from scratch: one call frame at the
// base of an empty stack, no open upvalues, no caller, no error.
func (f *ObjFiber) Reset(fn Obj) {
	switch fn.(type) {
	case *ObjFn, *ObjClosure:
	default:
		panic(errors.NewFault(errors.AssertionFault,
			"fiber entry point must be a function or closure"))
	}

	f.StackTop = 0
	f.NumFrames = 1
	f.OpenUpvalues = nil
	f.Caller = nil
	f.Error = NullVal
	f.CallerIsTrying = false

	frame := &f.Frames[0]
	frame.Fn = fn
	frame.StackStart = 0
	frame.IP = 0
}

// Push appends a value to the fiber's stack.
func (f *ObjFiber) Push(value Value) {
	if f.StackTop >= len(f.Stack) {
		panic(errors.NewFault(errors.StackOverflow,
			"fiber %d overflowed its stack", f.ID))
	}
	f.Stack[f.StackTop] = value
	f.StackTop++
}

// Pop removes and returns the top of the fiber's stack.
func (f *ObjFiber) Pop() Value {
	f.StackTop--
	return f.Stack[f.StackTop]
}
