package utils

// SymbolTable maps small integer symbols to names. Lookup is a linear scan;
// tables stay small (method names, module variables) so this has not been a
// bottleneck.
type SymbolTable struct {
	names Buffer[string]
}

// Init resets the table to empty.
func (t *SymbolTable) Init() {
	t.names.Init()
}

// Clear releases the table's storage.
func (t *SymbolTable) Clear(alloc Allocator) {
	t.names.Clear(alloc)
}

// Count returns the number of symbols defined.
func (t *SymbolTable) Count() int {
	return t.names.Count
}

// Name returns the name for symbol.
func (t *SymbolTable) Name(symbol int) string {
	return t.names.Data[symbol]
}

// Add defines a new symbol for name and returns it. The table takes
// ownership of a copy of name.
func (t *SymbolTable) Add(alloc Allocator, name string) int {
	alloc.Reallocate(0, len(name))
	t.names.Write(alloc, name)
	return t.names.Count - 1
}

// Ensure returns the symbol for name, defining it if needed.
func (t *SymbolTable) Ensure(alloc Allocator, name string) int {
	if existing := t.Find(name); existing != -1 {
		return existing
	}
	return t.Add(alloc, name)
}

// Find returns the symbol for name, or -1 if it is not defined.
func (t *SymbolTable) Find(name string) int {
	for i := 0; i < t.names.Count; i++ {
		if t.names.Data[i] == name {
			return i
		}
	}
	return -1
}
