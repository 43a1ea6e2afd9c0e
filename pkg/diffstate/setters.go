package diffstate

// Setter is a named, parameterized mutation routine for a key. It
// receives the key's current clean value and a set function that applies
// the mutation through the engine.
type Setter func(current any, set func(any), args ...any)

// RegisterSetter binds a named setter to a key, replacing any setter
// previously registered under the same name.
func (e *Engine) RegisterSetter(key, name string, setter Setter) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ks, _ := e.getOrCreate(key)
	ks.setters[name] = setter
}

// UnregisterSetter removes a named setter. Removing an unknown setter is
// a no-op.
func (e *Engine) UnregisterSetter(key, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ks, ok := e.keys[key]; ok {
		delete(ks.setters, name)
	}
}

// InvokeSetter runs a named setter against the key's current clean value.
// The diffMode flag is explicit: when true the setter's writes route
// through NewDiffState, otherwise through SetState. Returns false when no
// such setter is registered.
func (e *Engine) InvokeSetter(key, name string, diffMode bool, args ...any) bool {
	e.mu.RLock()
	ks, ok := e.keys[key]
	if !ok {
		e.mu.RUnlock()
		return false
	}
	setter, ok := ks.setters[name]
	e.mu.RUnlock()
	if !ok {
		return false
	}

	set := func(value any) {
		if diffMode {
			e.NewDiffState(key, value)
		} else {
			e.SetState(key, value)
		}
	}

	setter(e.CleanState(key), set, args...)
	return true
}
