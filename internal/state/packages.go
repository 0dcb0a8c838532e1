package state

// Packages is the ordered set of package schemas taking part in one run.
// Registration order is the tie-break order for Overridable declarations.
type Packages struct {
	order  []string
	byName map[string]*Schema
}

// NewPackages returns an empty package set.
func NewPackages() *Packages {
	return &Packages{byName: make(map[string]*Schema)}
}

// Add registers a schema under its label.
func (p *Packages) Add(s *Schema) error {
	if _, ok := p.byName[s.Label()]; ok {
		return Errorf(ErrDuplicatePackage, s.Label(), s.Label(), "package '%s' registered twice", s.Label())
	}
	p.order = append(p.order, s.Label())
	p.byName[s.Label()] = s
	return nil
}

// Get returns the schema registered under name.
func (p *Packages) Get(name string) (*Schema, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// Names lists package names in registration order.
func (p *Packages) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len is the number of registered packages.
func (p *Packages) Len() int { return len(p.order) }

// Each calls fn for every package in registration order, stopping at the
// first error.
func (p *Packages) Each(fn func(s *Schema) error) error {
	for _, name := range p.order {
		if err := fn(p.byName[name]); err != nil {
			return err
		}
	}
	return nil
}
