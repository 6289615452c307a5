package mir

// Module is the set of bodies read from one file, in file order.
type Module struct {
	Funcs []*Func
}

// Func returns the body with the given name.
func (m *Module) Func(name string) (*Func, bool) {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
