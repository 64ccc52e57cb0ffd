package vm

import "unsafe"

var (
	listSize  = int(unsafe.Sizeof(ObjList{}))
	valueSize = int(unsafe.Sizeof(Value{}))
)

// NewList creates a list with numElements slots. The slots are zeroed;
// callers fill them in.
func (vm *VM) NewList(numElements int) *ObjList {
	// Allocate the element storage before the list object so a
	// collection triggered here can't see a half-built list.
	var elements []Value
	if numElements > 0 {
		vm.allocateArray(valueSize, numElements)
		elements = make([]Value, numElements)
	}

	vm.allocate(listSize)
	list := &ObjList{}
	vm.initObj(list, KindList, vm.ListClass)
	list.Elements.Data = elements
	list.Elements.Count = numElements
	return list
}

// ListInsert inserts value at index, shifting later elements up one slot.
func (vm *VM) ListInsert(list *ObjList, value Value, index int) {
	if value.IsObj() {
		vm.PushRoot(value.AsObj())
	}

	// Add a slot at the end of the list. This can collect, which is why
	// the value is rooted above.
	list.Elements.Write(vm, NullVal)

	if value.IsObj() {
		vm.PopRoot()
	}

	// Shift the later elements up one slot.
	for i := list.Elements.Count - 1; i > index; i-- {
		list.Elements.Data[i] = list.Elements.Data[i-1]
	}

	list.Elements.Data[index] = value
}

// ListRemoveAt removes and returns the element at index, shifting later
// elements down one slot. Releases excess storage when the list is at most
// half full.
func (vm *VM) ListRemoveAt(list *ObjList, index int) Value {
	removed := list.Elements.Data[index]
	if removed.IsObj() {
		vm.PushRoot(removed.AsObj())
	}

	// Shift the later elements down one slot.
	for i := index; i < list.Elements.Count-1; i++ {
		list.Elements.Data[i] = list.Elements.Data[i+1]
	}

	// If we have too much excess capacity, shrink it.
	if list.Elements.Capacity()/GrowFactor >= list.Elements.Count {
		list.Elements.Shrink(vm, list.Elements.Capacity()/GrowFactor)
	}

	if removed.IsObj() {
		vm.PopRoot()
	}

	list.Elements.Count--
	return removed
}
