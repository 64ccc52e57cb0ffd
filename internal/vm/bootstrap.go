package vm

// InitCoreClasses builds the built-in class hierarchy and returns the core
// module that anchors it. Object and Class bootstrap each other: Class
// descends from Object, Object's metaclass descends from Class, and Class
// is its own class's class. Every core class is stored as a core-module
// variable, which is what keeps the registry reachable across collections.
func (vm *VM) InitCoreClasses() *ObjModule {
	coreName := vm.NewString("core")
	vm.PushRoot(coreName.AsObj())
	core := vm.NewModule(coreName.AsString())
	vm.PushRoot(core)

	// The core module is keyed by null in the module table.
	vm.MapSet(vm.Modules, NullVal, ObjValue(core))

	vm.PopRoot()
	vm.PopRoot()

	// Object and Class have to exist before NewClass can run, so they
	// are wired by hand.
	vm.ObjectClass = vm.defineSingleClass(core, "Object")

	vm.ClassClass = vm.defineSingleClass(core, "Class")
	vm.BindSuperclass(vm.ClassClass, vm.ObjectClass)

	// Close the loop: the root class Class is its own class's class.
	vm.ClassClass.ObjHeader.Class = vm.ClassClass

	// Object's metaclass descends from Class like every other
	// metaclass.
	objectMetaclass := vm.defineSingleClass(core, "Object metaclass")
	objectMetaclass.ObjHeader.Class = vm.ClassClass
	vm.ObjectClass.ObjHeader.Class = objectMetaclass
	vm.BindSuperclass(objectMetaclass, vm.ClassClass)

	// The rest of the registry goes through the normal constructor.
	vm.BoolClass = vm.defineClass(core, "Bool")
	vm.FiberClass = vm.defineClass(core, "Fiber")
	vm.FnClass = vm.defineClass(core, "Fn")
	vm.ListClass = vm.defineClass(core, "List")
	vm.MapClass = vm.defineClass(core, "Map")
	vm.NullClass = vm.defineClass(core, "Null")
	vm.NumClass = vm.defineClass(core, "Num")
	vm.RangeClass = vm.defineClass(core, "Range")
	vm.StringClass = vm.defineClass(core, "String")

	// Strings created before the String class existed have a nil class
	// pointer; patch them now.
	for obj := vm.first; obj != nil; obj = obj.Header().next {
		h := obj.Header()
		if h.Kind == KindString && h.Class == nil {
			h.Class = vm.StringClass
		}
	}

	return core
}

// defineSingleClass creates a bare class and stores it as a core-module
// variable so it survives collection.
func (vm *VM) defineSingleClass(module *ObjModule, name string) *ObjClass {
	nameString := vm.NewString(name).AsString()
	vm.PushRoot(nameString)

	classObj := vm.NewSingleClass(0, nameString)
	vm.DefineVariable(module, name, ObjValue(classObj))

	vm.PopRoot()
	return classObj
}

// defineClass creates a class descending from Object and stores it as a
// core-module variable.
func (vm *VM) defineClass(module *ObjModule, name string) *ObjClass {
	nameString := vm.NewString(name).AsString()
	vm.PushRoot(nameString)

	classObj := vm.NewClass(vm.ObjectClass, 0, nameString)
	vm.DefineVariable(module, name, ObjValue(classObj))

	vm.PopRoot()
	return classObj
}
