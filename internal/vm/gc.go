package vm

import (
	"time"

	"go.uber.org/zap"

	"finch/internal/utils"
)

// GCStats describes one completed collection.
type GCStats struct {
	// Seq is the 1-based collection sequence number.
	Seq uint64

	// When is the time the collection started.
	When time.Time

	// BytesBefore is the accounted heap size when the collection began;
	// BytesAfter is the live size it re-accrued.
	BytesBefore int
	BytesAfter  int

	// NextGC is the threshold chosen for the next collection.
	NextGC int

	// Freed and Survived count objects.
	Freed    int
	Survived int

	Pause time.Duration
}

// Recorder receives the stats of every collection. Implementations must
// not call back into the VM.
type Recorder interface {
	RecordCollection(stats GCStats)
}

// Collect runs a full mark-and-sweep collection.
//
// The byte accounting is reset up front; the mark phase re-accrues the
// size of every reachable object, so after the sweep the accounting holds
// the live size, which seeds the next collection threshold.
func (vm *VM) Collect() {
	start := time.Now()
	before := vm.bytesAllocated

	vm.bytesAllocated = 0

	// Mark the roots: the running fiber, the module table, the
	// temporary root stack, and whatever roots collaborators registered.
	if vm.Fiber != nil {
		vm.MarkObj(vm.Fiber)
	}
	if vm.Modules != nil {
		vm.MarkObj(vm.Modules)
	}
	for i := 0; i < vm.numRoots; i++ {
		vm.MarkObj(vm.roots[i])
	}
	for _, marker := range vm.rootMarkers {
		marker(vm)
	}

	// Sweep: walk the object list, unlinking and freeing everything
	// unmarked and clearing the mark bit on survivors.
	freed := 0
	survived := 0
	var prev Obj
	obj := vm.first
	for obj != nil {
		h := obj.Header()
		next := h.next
		if !h.marked {
			if prev == nil {
				vm.first = next
			} else {
				prev.Header().next = next
			}
			vm.FreeObj(obj)
			freed++
		} else {
			h.marked = false
			prev = obj
			survived++
		}
		obj = next
	}

	vm.nextGC = vm.bytesAllocated * vm.config.HeapGrowthPercent / 100
	if vm.nextGC < vm.config.MinHeapSize {
		vm.nextGC = vm.config.MinHeapSize
	}

	vm.collections++
	stats := GCStats{
		Seq:         vm.collections,
		When:        start,
		BytesBefore: before,
		BytesAfter:  vm.bytesAllocated,
		NextGC:      vm.nextGC,
		Freed:       freed,
		Survived:    survived,
		Pause:       time.Since(start),
	}

	vm.log.Debug("collection finished",
		zap.Uint64("seq", stats.Seq),
		zap.Int("bytesBefore", stats.BytesBefore),
		zap.Int("bytesAfter", stats.BytesAfter),
		zap.Int("nextGC", stats.NextGC),
		zap.Int("freed", stats.Freed),
		zap.Int("survived", stats.Survived),
		zap.Duration("pause", stats.Pause))

	if vm.config.Recorder != nil {
		vm.config.Recorder.RecordCollection(stats)
	}
}

// MarkObj marks obj and everything reachable from it. Safe to call on nil;
// already-marked objects are skipped, which is what keeps cycles from
// looping.
func (vm *VM) MarkObj(obj Obj) {
	if obj == nil {
		return
	}

	h := obj.Header()
	if h.marked {
		return
	}
	h.marked = true

	switch o := obj.(type) {
	case *ObjClass:
		vm.markClass(o)
	case *ObjClosure:
		vm.markClosure(o)
	case *ObjFiber:
		vm.markFiber(o)
	case *ObjFn:
		vm.markFn(o)
	case *ObjInstance:
		vm.markInstance(o)
	case *ObjList:
		vm.markList(o)
	case *ObjMap:
		vm.markMap(o)
	case *ObjModule:
		vm.markModule(o)
	case *ObjRange:
		vm.bytesAllocated += rangeSize
	case *ObjString:
		vm.bytesAllocated += stringSize + len(o.Value)
	case *ObjUpvalue:
		vm.markUpvalue(o)
	}
}

// MarkValue marks the object a value references, if any.
func (vm *VM) MarkValue(value Value) {
	if !value.IsObj() {
		return
	}
	vm.MarkObj(value.AsObj())
}

// MarkBuffer marks every value in a buffer.
func (vm *VM) MarkBuffer(buffer *utils.Buffer[Value]) {
	for i := 0; i < buffer.Count; i++ {
		vm.MarkValue(buffer.Data[i])
	}
}

func (vm *VM) markClass(classObj *ObjClass) {
	// The metaclass.
	if classObj.ObjHeader.Class != nil {
		vm.MarkObj(classObj.ObjHeader.Class)
	}

	if classObj.Superclass != nil {
		vm.MarkObj(classObj.Superclass)
	}

	// Method function objects.
	for i := 0; i < classObj.Methods.Count; i++ {
		if classObj.Methods.Data[i].Type == MethodBlock {
			vm.MarkObj(classObj.Methods.Data[i].Fn)
		}
	}

	if classObj.Name != nil {
		vm.MarkObj(classObj.Name)
	}

	vm.bytesAllocated += classSize
	vm.bytesAllocated += classObj.Methods.Capacity() * methodSize
}

func (vm *VM) markClosure(closure *ObjClosure) {
	vm.MarkObj(closure.Fn)

	for _, upvalue := range closure.Upvalues {
		if upvalue != nil {
			vm.MarkObj(upvalue)
		}
	}

	vm.bytesAllocated += closureSize
	vm.bytesAllocated += len(closure.Upvalues) * upvaluePtrSize
}

func (vm *VM) markFiber(fiber *ObjFiber) {
	// Frame functions.
	for i := 0; i < fiber.NumFrames; i++ {
		vm.MarkObj(fiber.Frames[i].Fn)
	}

	// Stack variables.
	for i := 0; i < fiber.StackTop; i++ {
		vm.MarkValue(fiber.Stack[i])
	}

	// Open upvalues.
	for upvalue := fiber.OpenUpvalues; upvalue != nil; upvalue = upvalue.Next {
		vm.MarkObj(upvalue)
	}

	if fiber.Caller != nil {
		vm.MarkObj(fiber.Caller)
	}
	vm.MarkValue(fiber.Error)

	vm.bytesAllocated += fiberSize
	vm.bytesAllocated += len(fiber.Stack) * valueSize
	vm.bytesAllocated += len(fiber.Frames) * frameSize
}

func (vm *VM) markFn(fn *ObjFn) {
	for _, constant := range fn.Constants {
		vm.MarkValue(constant)
	}

	if fn.Debug.SourcePath != nil {
		vm.MarkObj(fn.Debug.SourcePath)
	}

	vm.bytesAllocated += fnSize + fnDebugSize + len(fn.Debug.Name)
	vm.bytesAllocated += len(fn.Chunk.Code)
	vm.bytesAllocated += len(fn.Constants) * valueSize
	vm.bytesAllocated += len(fn.Chunk.Lines) * intSize
}

func (vm *VM) markInstance(instance *ObjInstance) {
	vm.MarkObj(instance.ObjHeader.Class)

	// The fields.
	for _, field := range instance.Fields {
		vm.MarkValue(field)
	}

	vm.bytesAllocated += instanceSize
	vm.bytesAllocated += len(instance.Fields) * valueSize
}

func (vm *VM) markList(list *ObjList) {
	vm.MarkBuffer(&list.Elements)

	vm.bytesAllocated += listSize
	vm.bytesAllocated += list.Elements.Capacity() * valueSize
}

func (vm *VM) markMap(m *ObjMap) {
	for i := range m.Entries {
		entry := &m.Entries[i]
		if entry.Key.IsUndefined() {
			continue
		}
		vm.MarkValue(entry.Key)
		vm.MarkValue(entry.Value)
	}

	vm.bytesAllocated += mapSize
	vm.bytesAllocated += len(m.Entries) * mapEntrySize
}

func (vm *VM) markModule(module *ObjModule) {
	// Top-level variables.
	vm.MarkBuffer(&module.Variables)

	if module.Name != nil {
		vm.MarkObj(module.Name)
	}

	vm.bytesAllocated += moduleSize
}

func (vm *VM) markUpvalue(upvalue *ObjUpvalue) {
	// Mark the closed-over value (in case the upvalue is closed).
	vm.MarkValue(upvalue.Closed)

	vm.bytesAllocated += upvalueSize
}

// FreeObj releases the storage an object owns. References to other objects
// are not chased; the sweep handles each object independently. The freed
// storage is not subtracted from the accounting: the accounting was reset
// to the live size during the mark phase and never included this object.
func (vm *VM) FreeObj(obj Obj) {
	switch o := obj.(type) {
	case *ObjClass:
		o.Methods.Clear(vm)

	case *ObjFn:
		o.Constants = nil
		o.Chunk = nil
		o.Debug = nil

	case *ObjList:
		o.Elements.Clear(vm)

	case *ObjMap:
		o.Entries = nil

	case *ObjModule:
		o.VariableNames.Clear(vm)
		o.Variables.Clear(vm)

	case *ObjString, *ObjClosure, *ObjFiber, *ObjInstance, *ObjRange,
		*ObjUpvalue:
		// Nothing owned beyond the object itself.
	}

	obj.Header().next = nil
}
