package vm

import "testing"

func TestBindMethod(t *testing.T) {
	vm := newTestVM()
	classObj := vm.NewSingleClass(0, vm.NewString("Thing").AsString())

	prim := func(vm *VM, args []Value) Value { return NullVal }
	vm.BindMethod(classObj, 3, Method{Type: MethodPrimitive, Primitive: prim})

	if classObj.Methods.Count != 4 {
		t.Fatalf("method table count = %d, want 4", classObj.Methods.Count)
	}
	for i := 0; i < 3; i++ {
		if classObj.Methods.Data[i].Type != MethodNone {
			t.Errorf("slot %d = %d, want MethodNone", i, classObj.Methods.Data[i].Type)
		}
	}
	if classObj.Methods.Data[3].Type != MethodPrimitive {
		t.Errorf("slot 3 = %d, want MethodPrimitive", classObj.Methods.Data[3].Type)
	}
}

func TestNewClassFields(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	// A class with 2 fields, subclassed with 1 more.
	classA := vm.NewClass(vm.ObjectClass, 2, vm.NewString("A").AsString())
	if classA.NumFields != 2 {
		t.Fatalf("A.NumFields = %d, want 2", classA.NumFields)
	}

	// Bind a method on A before subclassing.
	prim := func(vm *VM, args []Value) Value { return TrueVal }
	vm.BindMethod(classA, 7, Method{Type: MethodPrimitive, Primitive: prim})

	classB := vm.NewClass(classA, 1, vm.NewString("B").AsString())
	if classB.NumFields != 3 {
		t.Errorf("B.NumFields = %d, want 3", classB.NumFields)
	}
	if classB.Superclass != classA {
		t.Errorf("B.Superclass != A")
	}

	// The method bound at symbol 7 was copied into B's table, so
	// dispatch is a direct index lookup.
	if classB.Methods.Count < 8 {
		t.Fatalf("B method table count = %d, want >= 8", classB.Methods.Count)
	}
	if classB.Methods.Data[7].Type != MethodPrimitive {
		t.Errorf("B slot 7 = %d, want MethodPrimitive", classB.Methods.Data[7].Type)
	}
}

func TestNewClassMetaclass(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	classA := vm.NewClass(vm.ObjectClass, 0, vm.NewString("A").AsString())

	metaclass := classA.ObjHeader.Class
	if metaclass == nil {
		t.Fatal("A has no metaclass")
	}
	if metaclass.Name.String() != "A metaclass" {
		t.Errorf("metaclass name = %q, want %q", metaclass.Name.String(), "A metaclass")
	}
	if metaclass.NumFields != 0 {
		t.Errorf("metaclass NumFields = %d, want 0", metaclass.NumFields)
	}

	// Metaclasses inherit from Class and are instances of Class.
	if metaclass.Superclass != vm.ClassClass {
		t.Errorf("metaclass superclass is not Class")
	}
	if metaclass.ObjHeader.Class != vm.ClassClass {
		t.Errorf("metaclass's class is not Class")
	}
}

func TestCoreClassKnot(t *testing.T) {
	vm := newTestVM()
	vm.InitCoreClasses()

	// The root class Class is its own class's class.
	if vm.ClassClass.ObjHeader.Class != vm.ClassClass {
		t.Error("Class is not its own class's class")
	}
	if vm.ClassClass.Superclass != vm.ObjectClass {
		t.Error("Class does not descend from Object")
	}
	if vm.ObjectClass.ObjHeader.Class.Superclass != vm.ClassClass {
		t.Error("Object's metaclass does not descend from Class")
	}

	// Static method inheritance: binding on Class's table shows up on
	// every metaclass created afterwards.
	prim := func(vm *VM, args []Value) Value { return NullVal }
	vm.BindMethod(vm.ClassClass, 2, Method{Type: MethodPrimitive, Primitive: prim})

	classA := vm.NewClass(vm.ObjectClass, 0, vm.NewString("A").AsString())
	if classA.ObjHeader.Class.Methods.Data[2].Type != MethodPrimitive {
		t.Error("metaclass did not inherit Class's methods")
	}
}

func TestMethodSymbolTable(t *testing.T) {
	vm := newTestVM()

	add := vm.MethodNames.Ensure(vm, "add(_)")
	count := vm.MethodNames.Ensure(vm, "count")
	if add == count {
		t.Fatal("distinct method names share a symbol")
	}
	if got := vm.MethodNames.Ensure(vm, "add(_)"); got != add {
		t.Errorf("Ensure returned %d for existing name, want %d", got, add)
	}
	if got := vm.MethodNames.Find("missing"); got != -1 {
		t.Errorf("Find(missing) = %d, want -1", got)
	}
}
