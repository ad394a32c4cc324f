// Package variablegroups resolves variable group names found in pipeline
// configuration against the groups that exist in the project.
package variablegroups

import (
	"strings"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/links"
)

// MaskedValue replaces every secret variable value.
const MaskedValue = "********"

// Catalog is a read-only index of a project's variable groups. It is safe for
// concurrent use once built.
type Catalog struct {
	groups []domain.VariableGroup
	byName map[string]int
	byID   map[int64]int
	links  links.Deriver
}

// NewCatalog masks secrets and indexes groups by lower-cased name and by id.
// When two groups share a name the first one wins.
func NewCatalog(groups []domain.VariableGroup, l links.Deriver) *Catalog {
	c := &Catalog{
		groups: Mask(groups),
		byName: make(map[string]int, len(groups)),
		byID:   make(map[int64]int, len(groups)),
		links:  l,
	}

	for i := range c.groups {
		g := &c.groups[i]
		if g.ResourceURL == "" {
			g.ResourceURL = l.VariableGroup(g.ID)
		}
		key := strings.ToLower(g.Name)
		if _, ok := c.byName[key]; !ok {
			c.byName[key] = i
		}
		if _, ok := c.byID[g.ID]; !ok {
			c.byID[g.ID] = i
		}
	}
	return c
}

// Mask returns a copy of groups with secret values replaced by MaskedValue.
func Mask(groups []domain.VariableGroup) []domain.VariableGroup {
	out := make([]domain.VariableGroup, len(groups))
	for i, g := range groups {
		vars := make([]domain.Variable, len(g.Variables))
		for j, v := range g.Variables {
			if v.IsSecret {
				v.Value = MaskedValue
			}
			vars[j] = v
		}
		g.Variables = vars
		out[i] = g
	}
	return out
}

func (c *Catalog) Groups() []domain.VariableGroup {
	out := make([]domain.VariableGroup, len(c.groups))
	copy(out, c.groups)
	return out
}

func (c *Catalog) Len() int { return len(c.groups) }

// Lookup tries an exact case-insensitive name match first, then the first
// group whose name equals, contains, or is contained in name.
func (c *Catalog) Lookup(name string) (domain.VariableGroup, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return domain.VariableGroup{}, false
	}

	if i, ok := c.byName[key]; ok {
		return c.groups[i], true
	}

	for _, g := range c.groups {
		other := strings.ToLower(g.Name)
		if other == "" {
			continue
		}
		if other == key || strings.Contains(other, key) || strings.Contains(key, other) {
			return g, true
		}
	}
	return domain.VariableGroup{}, false
}

func (c *Catalog) ByID(id int64) (domain.VariableGroup, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.VariableGroup{}, false
	}
	return c.groups[i], true
}

// ResolveBindings turns parsed environment bindings into refs. Unresolved names
// get a library search link and a nil id.
func (c *Catalog) ResolveBindings(envs []domain.ParsedEnvironmentSettings) []domain.VariableGroupRef {
	out := make([]domain.VariableGroupRef, 0, len(envs))
	for _, e := range envs {
		ref := domain.VariableGroupRef{Name: e.VariableGroupName, Environment: e.Environment}
		if g, ok := c.Lookup(e.VariableGroupName); ok {
			c.fill(&ref, g)
		} else {
			ref.ResourceURL = c.links.LibrarySearch(e.VariableGroupName)
		}
		out = append(out, ref)
	}
	return out
}

// ResolveDeclared resolves the groups a definition references directly. A
// known id that is missing from the catalog still gets a deep link to it.
func (c *Catalog) ResolveDeclared(declared []domain.DeclaredVariableGroup) []domain.VariableGroupRef {
	out := make([]domain.VariableGroupRef, 0, len(declared))
	for _, d := range declared {
		ref := domain.VariableGroupRef{Name: d.Name}

		g, ok := c.ByID(d.ID)
		if !ok {
			g, ok = c.Lookup(d.Name)
		}

		switch {
		case ok:
			c.fill(&ref, g)
		case d.ID > 0:
			id := d.ID
			ref.ID = &id
			ref.ResourceURL = c.links.VariableGroup(id)
		default:
			ref.ResourceURL = c.links.LibrarySearch(d.Name)
		}
		out = append(out, ref)
	}
	return out
}

func (c *Catalog) fill(ref *domain.VariableGroupRef, g domain.VariableGroup) {
	id := g.ID
	ref.ID = &id
	ref.VariableCount = len(g.Variables)
	ref.ResourceURL = g.ResourceURL
	if ref.Name == "" {
		ref.Name = g.Name
	}
}
