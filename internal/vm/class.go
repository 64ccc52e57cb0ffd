package vm

import (
	"unsafe"

	"finch/internal/errors"
)

var (
	classSize  = int(unsafe.Sizeof(ObjClass{}))
	methodSize = int(unsafe.Sizeof(Method{}))
)

// NewSingleClass creates a bare class with no superclass bound and no
// metaclass wired up. NewClass is the full constructor; this one exists for
// it and for the core-class bootstrap.
func (vm *VM) NewSingleClass(numFields int, name *ObjString) *ObjClass {
	vm.allocate(classSize)
	classObj := &ObjClass{NumFields: numFields, Name: name}
	vm.initObj(classObj, KindClass, nil)

	vm.PushRoot(classObj)
	classObj.Methods.Init()
	vm.PopRoot()

	return classObj
}

// BindSuperclass wires subclass under superclass: the subclass's field
// count grows by the inherited fields, and every method slot is copied down
// so dispatch stays a direct index lookup with no superclass walking.
func (vm *VM) BindSuperclass(subclass, superclass *ObjClass) {
	if superclass == nil {
		panic(errors.NewFault(errors.AssertionFault, "must have superclass"))
	}

	subclass.Superclass = superclass

	// Include the superclass in the total number of fields.
	subclass.NumFields += superclass.NumFields

	// Inherit methods from the superclass.
	for i := 0; i < superclass.Methods.Count; i++ {
		vm.BindMethod(subclass, i, superclass.Methods.Data[i])
	}
}

// BindMethod stores method at the given symbol in the class's method
// table, padding intervening slots with MethodNone.
func (vm *VM) BindMethod(classObj *ObjClass, symbol int, method Method) {
	// Make sure the table is big enough to contain the symbol's index.
	if symbol >= classObj.Methods.Count {
		classObj.Methods.Fill(vm, Method{Type: MethodNone},
			symbol-classObj.Methods.Count+1)
	}

	classObj.Methods.Data[symbol] = method
}

// NewClass creates a class and its metaclass. Metaclasses always inherit
// from the root Class and do not parallel the non-metaclass hierarchy.
func (vm *VM) NewClass(superclass *ObjClass, numFields int, name *ObjString) *ObjClass {
	// Create the metaclass.
	metaclassName := vm.StringFormat("@ metaclass", ObjValue(name))
	vm.PushRoot(metaclassName.AsObj())

	metaclass := vm.NewSingleClass(0, metaclassName.AsString())
	metaclass.ObjHeader.Class = vm.ClassClass

	vm.PopRoot()

	// Make sure the metaclass isn't collected when we allocate the class.
	vm.PushRoot(metaclass)

	vm.BindSuperclass(metaclass, vm.ClassClass)

	classObj := vm.NewSingleClass(numFields, name)

	// Make sure the class isn't collected while the inherited methods
	// are being bound.
	vm.PushRoot(classObj)

	classObj.ObjHeader.Class = metaclass
	vm.BindSuperclass(classObj, superclass)

	vm.PopRoot()
	vm.PopRoot()

	return classObj
}
