package vm

import "unsafe"

var (
	instanceSize = int(unsafe.Sizeof(ObjInstance{}))
	rangeSize    = int(unsafe.Sizeof(ObjRange{}))
	moduleSize   = int(unsafe.Sizeof(ObjModule{}))
)

// ObjInstance is an instance of a user-defined class: its class pointer
// plus one value slot per field (including inherited ones).
type ObjInstance struct {
	ObjHeader
	Fields []Value
}

// NewInstance creates an instance of classObj with every field null.
func (vm *VM) NewInstance(classObj *ObjClass) Value {
	vm.allocateFlex(instanceSize, valueSize, classObj.NumFields)
	instance := &ObjInstance{Fields: make([]Value, classObj.NumFields)}
	vm.initObj(instance, KindInstance, classObj)

	for i := range instance.Fields {
		instance.Fields[i] = NullVal
	}

	return ObjValue(instance)
}

// NewRange creates a range.
func (vm *VM) NewRange(from, to float64, isInclusive bool) Value {
	vm.allocate(rangeSize)
	r := &ObjRange{From: from, To: to, IsInclusive: isInclusive}
	vm.initObj(r, KindRange, vm.RangeClass)
	return ObjValue(r)
}

// NewModule creates an empty module named name. Modules are never
// first-class values, so they have no class.
func (vm *VM) NewModule(name *ObjString) *ObjModule {
	vm.allocate(moduleSize)
	module := &ObjModule{}
	vm.initObj(module, KindModule, nil)

	vm.PushRoot(module)
	module.VariableNames.Init()
	module.Variables.Init()
	module.Name = name
	vm.PopRoot()

	return module
}

// DefineVariable adds a top-level variable to module and returns its
// symbol. Returns the existing symbol if the name is already defined.
func (vm *VM) DefineVariable(module *ObjModule, name string, value Value) int {
	if existing := module.VariableNames.Find(name); existing != -1 {
		module.Variables.Data[existing] = value
		return existing
	}

	if value.IsObj() {
		vm.PushRoot(value.AsObj())
	}
	symbol := module.VariableNames.Add(vm, name)
	module.Variables.Write(vm, value)
	if value.IsObj() {
		vm.PopRoot()
	}
	return symbol
}
