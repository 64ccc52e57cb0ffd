// Package vm implements the heap object model and memory manager of the
// finch runtime: the tagged value representation, the typed object
// constructors, the container and string operations, and the mark-and-sweep
// garbage collector that ties them together. The bytecode interpreter and
// compiler sit on top of the contracts this package exports.
package vm

import (
	"go.uber.org/zap"

	"finch/internal/errors"
	"finch/internal/utils"
)

const (
	// MinCapacity is the initial (and minimum) capacity of a non-empty
	// map entry array.
	MinCapacity = 16

	// GrowFactor multiplies a collection's capacity when it fills.
	// Growing geometrically keeps appends O(1) amortized.
	GrowFactor = 2

	// MapLoadPercent is the maximum percentage of map entries that can
	// be filled before the map grows. A lower load takes more memory but
	// reduces collisions.
	MapLoadPercent = 75

	// maxTempRoots bounds the stack of temporary GC roots. Constructors
	// only need a couple at a time, so overflowing it is a bug.
	maxTempRoots = 8
)

// Config tunes the heap.
type Config struct {
	// InitialHeapSize is the number of accounted bytes that triggers the
	// first collection.
	InitialHeapSize int

	// MinHeapSize is the floor for the after-collection threshold, so
	// small live sets don't cause constant collections.
	MinHeapSize int

	// HeapGrowthPercent sets the next collection threshold relative to
	// the live size after a collection: 150 means collect again once the
	// heap grows past 1.5x the live size.
	HeapGrowthPercent int

	// Logger receives a debug line per collection. Defaults to a nop
	// logger.
	Logger *zap.Logger

	// Recorder, if set, receives the stats of every collection.
	Recorder Recorder
}

// DefaultConfig returns the default heap tuning.
func DefaultConfig() Config {
	return Config{
		InitialHeapSize:   10 * 1024 * 1024,
		MinHeapSize:       1024 * 1024,
		HeapGrowthPercent: 150,
	}
}

// VM owns the heap: the intrusive list of every live object, the byte
// accounting that drives collection, and the registry of built-in classes.
// It is strictly single-threaded.
type VM struct {
	// Built-in class registry. Nil until the interpreter's core module
	// bootstraps them (InitCoreClasses).
	ObjectClass *ObjClass
	ClassClass  *ObjClass
	BoolClass   *ObjClass
	FiberClass  *ObjClass
	FnClass     *ObjClass
	ListClass   *ObjClass
	MapClass    *ObjClass
	NullClass   *ObjClass
	NumClass    *ObjClass
	RangeClass  *ObjClass
	StringClass *ObjClass

	// Fiber is the currently running fiber, a GC root.
	Fiber *ObjFiber

	// Modules maps module name strings to module objects, a GC root.
	Modules *ObjMap

	// MethodNames is the global method symbol table. A method symbol is
	// an index into every class's method table.
	MethodNames utils.SymbolTable

	// first heads the intrusive list threading every object on the heap.
	first Obj

	bytesAllocated int
	nextGC         int
	gcEnabled      bool
	collections    uint64

	// roots is the LIFO stack of temporary roots protecting in-progress
	// allocations.
	roots    [maxTempRoots]Obj
	numRoots int

	// rootMarkers are caller-registered hooks marking roots the VM
	// doesn't own, such as a compiler's in-progress objects.
	rootMarkers []func(*VM)

	nextFiberID uint32

	config Config
	log    *zap.Logger
}

// NewVM creates a VM with the given heap tuning. Zero config fields fall
// back to the defaults.
func NewVM(config Config) *VM {
	defaults := DefaultConfig()
	if config.InitialHeapSize == 0 {
		config.InitialHeapSize = defaults.InitialHeapSize
	}
	if config.MinHeapSize == 0 {
		config.MinHeapSize = defaults.MinHeapSize
	}
	if config.HeapGrowthPercent == 0 {
		config.HeapGrowthPercent = defaults.HeapGrowthPercent
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	vm := &VM{
		gcEnabled: true,
		config:    config,
		log:       config.Logger,
		nextGC:    config.InitialHeapSize,
	}
	vm.MethodNames.Init()
	vm.Modules = vm.NewMap()
	return vm
}

// BytesAllocated returns the bytes accounted since the last collection
// finished (live bytes plus garbage allocated since).
func (vm *VM) BytesAllocated() int { return vm.bytesAllocated }

// NextGC returns the accounting threshold that triggers the next
// collection.
func (vm *VM) NextGC() int { return vm.nextGC }

// Collections returns how many collections have run.
func (vm *VM) Collections() uint64 { return vm.collections }

// SetGCEnabled toggles automatic collection. Explicit Collect calls still
// work while disabled.
func (vm *VM) SetGCEnabled(enabled bool) { vm.gcEnabled = enabled }

// Reallocate is the single allocation primitive everything routes through.
// It adjusts the byte accounting by newSize - oldSize; a growing request
// that pushes the accounting past the threshold triggers a collection
// before the caller's allocation proceeds. The Go runtime is the host
// allocator, so this primitive is the bookkeeping and trigger point, not
// the storage itself; objects never move.
func (vm *VM) Reallocate(oldSize, newSize int) {
	vm.bytesAllocated += newSize - oldSize

	if newSize > 0 && vm.gcEnabled && vm.bytesAllocated > vm.nextGC {
		vm.Collect()
	}
}

// allocate accounts a fresh allocation of size bytes.
func (vm *VM) allocate(size int) {
	vm.Reallocate(0, size)
}

// allocateFlex accounts an object with a trailing array: the header plus
// count elements.
func (vm *VM) allocateFlex(baseSize, elemSize, count int) {
	vm.Reallocate(0, baseSize+elemSize*count)
}

// allocateArray accounts a bare array of count elements.
func (vm *VM) allocateArray(elemSize, count int) {
	vm.Reallocate(0, elemSize*count)
}

// initObj fills in an object's header and links it onto the object list.
// Until this runs, a freshly built object is invisible to the collector.
func (vm *VM) initObj(obj Obj, kind ObjKind, class *ObjClass) {
	h := obj.Header()
	h.Kind = kind
	h.marked = false
	h.Class = class
	h.next = vm.first
	vm.first = obj
}

// PushRoot marks obj as a temporary GC root, protecting it across
// allocations made before it is reachable from elsewhere.
func (vm *VM) PushRoot(obj Obj) {
	if obj == nil {
		panic(errors.NewFault(errors.AssertionFault, "cannot root a nil object"))
	}
	if vm.numRoots >= maxTempRoots {
		panic(errors.NewFault(errors.RootStackOverflow,
			"too many temporary roots (max %d)", maxTempRoots))
	}
	vm.roots[vm.numRoots] = obj
	vm.numRoots++
}

// PopRoot removes the most recently pushed temporary root.
func (vm *VM) PopRoot() {
	if vm.numRoots <= 0 {
		panic(errors.NewFault(errors.AssertionFault, "no roots to pop"))
	}
	vm.numRoots--
	vm.roots[vm.numRoots] = nil
}

// AddRootMarker registers a hook called during the mark phase to mark
// roots the VM doesn't own. The compiler uses this to protect objects it
// is still wiring up.
func (vm *VM) AddRootMarker(marker func(*VM)) {
	vm.rootMarkers = append(vm.rootMarkers, marker)
}
