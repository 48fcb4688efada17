package catalog

import (
	"fmt"
	"sort"
)

// Catalog is an immutable snapshot of a database's structural metadata.
// It is assembled exclusively through Builder and never mutated afterward;
// every accessor returns values or copies of slices, never a handle into
// builder-owned storage.
type Catalog struct {
	tables        map[string]Table
	views         map[string]View
	routines      map[string]Routine
	defaultSchema string
	provider      Provider
}

// DefaultSchema returns the schema used for unqualified name resolution.
func (c *Catalog) DefaultSchema() string { return c.defaultSchema }

// Provider returns the engine this catalog was extracted from.
func (c *Catalog) Provider() Provider { return c.provider }

// Table looks up a table by FQN.
func (c *Catalog) Table(fqn FQN) (Table, bool) {
	t, ok := c.tables[fqn.key()]
	return t, ok
}

// View looks up a view by FQN.
func (c *Catalog) View(fqn FQN) (View, bool) {
	v, ok := c.views[fqn.key()]
	return v, ok
}

// Routine looks up a routine by FQN.
func (c *Catalog) Routine(fqn FQN) (Routine, bool) {
	r, ok := c.routines[fqn.key()]
	return r, ok
}

// Tables returns all tables ordered by FQN, for deterministic iteration.
func (c *Catalog) Tables() []Table {
	out := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN.Compare(out[j].FQN) < 0 })
	return out
}

// Views returns all views ordered by FQN.
func (c *Catalog) Views() []View {
	out := make([]View, 0, len(c.views))
	for _, v := range c.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN.Compare(out[j].FQN) < 0 })
	return out
}

// Routines returns all routines ordered by FQN.
func (c *Catalog) Routines() []Routine {
	out := make([]Routine, 0, len(c.routines))
	for _, r := range c.routines {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN.Compare(out[j].FQN) < 0 })
	return out
}

// ResolveFQN resolves a name against the catalog's known table and view
// FQNs. A schema-qualified name matches only that exact FQN. An unqualified
// name follows §4.1's resolution preference: exact (default_schema, name),
// then a unique cross-schema match, then ambiguous (returns ok=false,
// ambiguous=true).
func (c *Catalog) ResolveFQN(schema, name string) (fqn FQN, ok bool, ambiguous bool) {
	if schema != "" {
		candidate := NewFQN(schema, name)
		if _, found := c.tables[candidate.key()]; found {
			return candidate, true, false
		}
		if _, found := c.views[candidate.key()]; found {
			return candidate, true, false
		}
		return FQN{}, false, false
	}

	exact := NewFQN(c.defaultSchema, name)
	if _, found := c.tables[exact.key()]; found {
		return exact, true, false
	}
	if _, found := c.views[exact.key()]; found {
		return exact, true, false
	}

	var matches []FQN
	for _, t := range c.tables {
		if equalFold(t.FQN.Name, name) {
			matches = append(matches, t.FQN)
		}
	}
	for _, v := range c.views {
		if equalFold(v.FQN.Name, name) {
			matches = append(matches, v.FQN)
		}
	}
	switch len(matches) {
	case 0:
		return FQN{}, false, false
	case 1:
		return matches[0], true, false
	default:
		return FQN{}, false, true
	}
}

// Builder assembles a Catalog additively, then freezes it via Build. Every
// invariant listed in the data model is checked at Build time so a
// successfully built Catalog can be trusted by every downstream package
// without re-validating.
type Builder struct {
	tables        map[string]Table
	views         map[string]View
	routines      map[string]Routine
	defaultSchema string
	provider      Provider
}

// NewBuilder creates an empty Builder for the given provider and default schema.
func NewBuilder(provider Provider, defaultSchema string) *Builder {
	return &Builder{
		tables:        make(map[string]Table),
		views:         make(map[string]View),
		routines:      make(map[string]Routine),
		defaultSchema: defaultSchema,
		provider:      provider,
	}
}

// AddTable adds a table. Returns ErrDuplicateFQN if the FQN is already present.
func (b *Builder) AddTable(t Table) error {
	k := t.FQN.key()
	if _, exists := b.tables[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFQN, t.FQN)
	}
	b.tables[k] = t
	return nil
}

// AddView adds a view. Returns ErrDuplicateFQN if the FQN is already present.
func (b *Builder) AddView(v View) error {
	k := v.FQN.key()
	if _, exists := b.views[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFQN, v.FQN)
	}
	b.views[k] = v
	return nil
}

// AddRoutine adds a routine. Returns ErrDuplicateFQN if the FQN is already present.
func (b *Builder) AddRoutine(r Routine) error {
	k := r.FQN.key()
	if _, exists := b.routines[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFQN, r.FQN)
	}
	b.routines[k] = r
	return nil
}

// Build validates every invariant from the data model and, on success,
// returns a frozen Catalog. On failure it returns a CatalogIntegrityError
// (via fmt.Errorf wrapping one of the catalog sentinel errors) naming the
// offending FQN; the caller must treat this as fatal for the analysis.
func (b *Builder) Build() (*Catalog, error) {
	for _, t := range b.tables {
		if err := validateTable(t); err != nil {
			return nil, err
		}
		for _, fk := range t.ForeignKeys {
			if len(fk.LocalColumns) != len(fk.ReferencedColumns) {
				return nil, fmt.Errorf("%w: %s.%s", ErrForeignKeyColumnCountMismatch, t.FQN, fk.Name)
			}
			if _, found := b.tables[fk.ReferencedTable.key()]; !found {
				return nil, fmt.Errorf("%w: %s.%s -> %s", ErrForeignKeyUnknownTable, t.FQN, fk.Name, fk.ReferencedTable)
			}
		}
	}

	tables := make(map[string]Table, len(b.tables))
	for k, v := range b.tables {
		tables[k] = v
	}
	views := make(map[string]View, len(b.views))
	for k, v := range b.views {
		views[k] = v
	}
	routines := make(map[string]Routine, len(b.routines))
	for k, v := range b.routines {
		routines[k] = v
	}

	return &Catalog{
		tables:        tables,
		views:         views,
		routines:      routines,
		defaultSchema: b.defaultSchema,
		provider:      b.provider,
	}, nil
}

func validateTable(t Table) error {
	exists := func(name string) bool {
		_, ok := t.Column(name)
		return ok
	}
	for _, name := range t.PrimaryKey {
		if !exists(name) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownPKColumn, t.FQN, name)
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, name := range fk.LocalColumns {
			if !exists(name) {
				return fmt.Errorf("%w: %s.%s (fk %s)", ErrUnknownFKColumn, t.FQN, name, fk.Name)
			}
		}
	}
	for _, uq := range t.UniqueConstraints {
		for _, name := range uq.Columns {
			if !exists(name) {
				return fmt.Errorf("%w: %s.%s (unique %s)", ErrUnknownUniqueColumn, t.FQN, name, uq.Name)
			}
		}
	}
	for _, idx := range t.Indexes {
		for _, ic := range idx.Columns {
			if !exists(ic.Name) {
				return fmt.Errorf("%w: %s.%s (index %s)", ErrUnknownIndexColumn, t.FQN, ic.Name, idx.Name)
			}
		}
	}
	return nil
}
