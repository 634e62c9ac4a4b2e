package match

// Entry is one checkbox id with its accepted alias strings. The canonical
// form always participates as an alias of itself.
type Entry struct {
	ID      string
	Aliases []string
}

// Dictionary is the insertion-ordered feature dictionary. Order matters:
// it is the final tie-break when two entries score identically, so loaders
// must preserve the order of the source file.
type Dictionary struct {
	entries []Entry
	byAlias map[string]string // normalised alias -> checkbox id
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{byAlias: map[string]string{}}
}

// Add appends an entry. The canonical id is registered as an alias of
// itself; later entries never displace an alias already claimed by an
// earlier one.
func (d *Dictionary) Add(id string, aliases ...string) {
	e := Entry{ID: id, Aliases: append([]string{id}, aliases...)}
	d.entries = append(d.entries, e)
	for _, a := range e.Aliases {
		norm := Normalize(a)
		if norm == "" {
			continue
		}
		if _, taken := d.byAlias[norm]; !taken {
			d.byAlias[norm] = id
		}
	}
}

// AddAlias attaches an alias to an existing entry. Unknown ids and aliases
// already claimed by another entry are ignored; returns whether the alias
// was added.
func (d *Dictionary) AddAlias(id, alias string) bool {
	norm := Normalize(alias)
	if norm == "" {
		return false
	}
	if _, taken := d.byAlias[norm]; taken {
		return false
	}
	for i := range d.entries {
		if d.entries[i].ID == id {
			d.entries[i].Aliases = append(d.entries[i].Aliases, alias)
			d.byAlias[norm] = id
			return true
		}
	}
	return false
}

// Entries returns the entries in insertion order. Callers must not mutate.
func (d *Dictionary) Entries() []Entry { return d.entries }

// Len returns the number of checkbox ids.
func (d *Dictionary) Len() int { return len(d.entries) }

// LookupAlias resolves an already-normalised string to a checkbox id when
// it equals a known alias exactly.
func (d *Dictionary) LookupAlias(norm string) (string, bool) {
	id, ok := d.byAlias[norm]
	return id, ok
}
