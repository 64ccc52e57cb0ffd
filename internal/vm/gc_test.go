package vm

import (
	"fmt"
	"testing"
)

// onHeap reports whether obj is still linked on the VM's object list.
func onHeap(vm *VM, obj Obj) bool {
	for o := vm.first; o != nil; o = o.Header().next {
		if o == obj {
			return true
		}
	}
	return false
}

func TestReallocateAccounting(t *testing.T) {
	vm := newTestVM()
	before := vm.BytesAllocated()

	vm.Reallocate(0, 1000)
	if got := vm.BytesAllocated(); got != before+1000 {
		t.Errorf("bytesAllocated = %d, want %d", got, before+1000)
	}
	vm.Reallocate(1000, 400)
	if got := vm.BytesAllocated(); got != before+400 {
		t.Errorf("bytesAllocated after shrink = %d, want %d", got, before+400)
	}
}

func TestRootStack(t *testing.T) {
	vm := newTestVM()
	s := vm.NewString("rooted").AsObj()

	for i := 0; i < maxTempRoots; i++ {
		vm.PushRoot(s)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on root stack overflow")
			}
		}()
		vm.PushRoot(s)
	}()

	for i := 0; i < maxTempRoots; i++ {
		vm.PopRoot()
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic popping an empty root stack")
		}
	}()
	vm.PopRoot()
}

func TestCollectFreesUnreachable(t *testing.T) {
	vm := newTestVM()

	garbage := vm.NewString("garbage").AsObj()
	rooted := vm.NewString("rooted").AsObj()
	vm.PushRoot(rooted)

	if !onHeap(vm, garbage) || !onHeap(vm, rooted) {
		t.Fatal("objects not linked after construction")
	}

	vm.Collect()

	if onHeap(vm, garbage) {
		t.Error("unreachable string survived collection")
	}
	if !onHeap(vm, rooted) {
		t.Error("rooted string was collected")
	}
	vm.PopRoot()
}

func TestCollectClearsMarks(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	vm.Collect()
	for obj := vm.first; obj != nil; obj = obj.Header().next {
		if obj.Header().marked {
			t.Fatalf("object kind %d still marked after collection", obj.Header().Kind)
		}
	}

	// A second collection over the same live set must keep it intact.
	live := 0
	for obj := vm.first; obj != nil; obj = obj.Header().next {
		live++
	}
	vm.Collect()
	after := 0
	for obj := vm.first; obj != nil; obj = obj.Header().next {
		after++
	}
	if live != after {
		t.Errorf("stable live set changed across collections: %d -> %d", live, after)
	}
}

// Scenario: a class cycle (class -> metaclass -> Class -> itself) must
// survive a collection rooted only at the class, without looping the
// marker.
func TestCollectClassCycle(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	classA := vm.NewClass(vm.ObjectClass, 2, vm.NewString("A").AsString())
	metaclass := classA.ObjHeader.Class

	vm.PushRoot(classA)
	vm.Collect()
	vm.PopRoot()

	if !onHeap(vm, classA) {
		t.Error("class was collected while rooted")
	}
	if !onHeap(vm, metaclass) {
		t.Error("metaclass was collected")
	}
	if !onHeap(vm, vm.ClassClass) {
		t.Error("root Class was collected")
	}
	if !onHeap(vm, classA.Name) {
		t.Error("class name was collected")
	}
}

func TestCollectAccruesLiveBytes(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	// Pile up garbage so the live size is clearly below the total.
	for i := 0; i < 100; i++ {
		vm.NewString(fmt.Sprintf("garbage-%d", i))
	}
	before := vm.BytesAllocated()

	vm.Collect()

	after := vm.BytesAllocated()
	if after <= 0 {
		t.Fatalf("live bytes after collection = %d, want > 0", after)
	}
	if after >= before {
		t.Errorf("live bytes %d not below pre-collection total %d", after, before)
	}
	if vm.NextGC() < DefaultConfig().MinHeapSize {
		t.Errorf("nextGC = %d, below the minimum heap size", vm.NextGC())
	}
}

func TestCollectTriggersAutomatically(t *testing.T) {
	vm := NewVM(Config{
		InitialHeapSize:   16 * 1024,
		MinHeapSize:       16 * 1024,
		HeapGrowthPercent: 150,
	})
	vm.InitCoreClasses()

	for i := 0; i < 2000; i++ {
		vm.NewString(fmt.Sprintf("churn-%d", i))
	}

	if vm.Collections() == 0 {
		t.Error("allocation churn never triggered a collection")
	}
}

func TestCollectMarksFiber(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	fn := vm.NewFunction(nil, nil, 1, 0, testChunk(), nil, "main")
	fiber := vm.NewFiber(fn)

	stackValue := vm.NewString("on the stack")
	fiber.Push(stackValue)

	upvalue := vm.NewUpvalue(&fiber.Stack[0])
	fiber.OpenUpvalues = upvalue

	caller := vm.NewFiber(fn)
	fiber.Caller = caller
	errVal := vm.NewString("oops")
	fiber.Error = errVal

	vm.Fiber = fiber
	vm.Collect()

	for name, obj := range map[string]Obj{
		"fiber":        fiber,
		"frame fn":     fn,
		"stack value":  stackValue.AsObj(),
		"open upvalue": upvalue,
		"caller":       caller,
		"error":        errVal.AsObj(),
	} {
		if !onHeap(vm, obj) {
			t.Errorf("%s was collected", name)
		}
	}

	// Dropping the fiber makes the whole graph garbage.
	vm.Fiber = nil
	vm.Collect()
	if onHeap(vm, fiber) || onHeap(vm, upvalue) || onHeap(vm, stackValue.AsObj()) {
		t.Error("fiber graph survived after the fiber was dropped")
	}
}

func TestCollectMarksClosureAndConstants(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	constant := vm.NewString("constant pool entry")
	sourcePath := vm.NewString("main.fn").AsString()
	fn := vm.NewFunction(nil, []Value{constant}, 1, 0, testChunk(), sourcePath, "f")

	closure := vm.NewClosure(fn)
	fiber := vm.NewFiber(closure)
	fiber.Push(NumValue(7))
	closure.Upvalues[0] = vm.NewUpvalue(&fiber.Stack[0])

	vm.Fiber = fiber
	vm.Collect()

	for name, obj := range map[string]Obj{
		"closure":       closure,
		"fn":            fn,
		"constant":      constant.AsObj(),
		"source path":   sourcePath,
		"bound upvalue": closure.Upvalues[0],
	} {
		if !onHeap(vm, obj) {
			t.Errorf("%s was collected", name)
		}
	}
	vm.Fiber = nil
}

func TestCollectMarksContainers(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	list := vm.NewList(0)
	element := vm.NewString("element")
	vm.ListInsert(list, element, 0)

	m := vm.NewMap()
	key := vm.NewString("key")
	value := vm.NewString("value")
	vm.MapSet(m, key, value)

	vm.PushRoot(list)
	vm.PushRoot(m)
	vm.Collect()
	vm.PopRoot()
	vm.PopRoot()

	for name, obj := range map[string]Obj{
		"list":      list,
		"element":   element.AsObj(),
		"map":       m,
		"map key":   key.AsObj(),
		"map value": value.AsObj(),
	} {
		if !onHeap(vm, obj) {
			t.Errorf("%s was collected", name)
		}
	}
}

func TestCollectMarksModuleVariables(t *testing.T) {
	vm := newTestVM()
	core := vm.InitCoreClasses()

	held := vm.NewString("held by module")
	vm.DefineVariable(core, "held", held)

	instance := vm.NewInstance(vm.NewClass(vm.ObjectClass, 1, vm.NewString("Box").AsString()))
	vm.DefineVariable(core, "box", instance)
	field := vm.NewString("field value")
	instance.Obj.(*ObjInstance).Fields[0] = field

	vm.Collect()

	if !onHeap(vm, held.AsObj()) {
		t.Error("module variable was collected")
	}
	if !onHeap(vm, instance.AsObj()) {
		t.Error("instance held by module was collected")
	}
	if !onHeap(vm, field.AsObj()) {
		t.Error("instance field value was collected")
	}
}

func TestRootMarkerHook(t *testing.T) {
	vm := newTestVM()

	pinned := vm.NewString("compiler temporary").AsObj()
	vm.AddRootMarker(func(vm *VM) {
		vm.MarkObj(pinned)
	})

	vm.Collect()
	if !onHeap(vm, pinned) {
		t.Error("object pinned by root marker was collected")
	}
}

type captureRecorder struct {
	stats []GCStats
}

func (r *captureRecorder) RecordCollection(stats GCStats) {
	r.stats = append(r.stats, stats)
}

func TestRecorderReceivesStats(t *testing.T) {
	recorder := &captureRecorder{}
	vm := NewVM(Config{Recorder: recorder})
	vm.InitCoreClasses()

	vm.Collect()
	vm.Collect()

	if len(recorder.stats) != 2 {
		t.Fatalf("recorded %d collections, want 2", len(recorder.stats))
	}
	if recorder.stats[0].Seq != 1 || recorder.stats[1].Seq != 2 {
		t.Errorf("sequence numbers = %d, %d, want 1, 2",
			recorder.stats[0].Seq, recorder.stats[1].Seq)
	}
	if recorder.stats[1].BytesAfter <= 0 {
		t.Errorf("BytesAfter = %d, want > 0", recorder.stats[1].BytesAfter)
	}
	if recorder.stats[1].NextGC < DefaultConfig().MinHeapSize {
		t.Errorf("NextGC = %d, below minimum", recorder.stats[1].NextGC)
	}
}

func TestSetGCEnabled(t *testing.T) {
	vm := NewVM(Config{
		InitialHeapSize:   4 * 1024,
		MinHeapSize:       4 * 1024,
		HeapGrowthPercent: 150,
	})
	vm.SetGCEnabled(false)

	for i := 0; i < 2000; i++ {
		vm.NewString(fmt.Sprintf("churn-%d", i))
	}
	if vm.Collections() != 0 {
		t.Error("collection ran while the GC was disabled")
	}

	// An explicit collection still works.
	vm.Collect()
	if vm.Collections() != 1 {
		t.Error("explicit Collect did not run")
	}
}
