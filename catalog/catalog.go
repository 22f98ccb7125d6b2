package catalog

import (
	"fmt"
	"sort"
)

// Catalog is the read-only capability table. Lifecycle is load once,
// query many: construction validates and indexes every record, and no
// mutation happens afterwards, so concurrent readers need no locking.
type Catalog struct {
	byID    map[string]*Capability
	byLayer map[string][]string
	ids     []string
}

// New builds a catalog from capability records. Construction fails with
// a MalformedCatalogError if any record lacks a required contract field,
// and with a plain error on duplicate IDs. The mandatory provenance
// output fields are injected where omitted.
func New(capabilities []Capability) (*Catalog, error) {
	c := &Catalog{
		byID:    make(map[string]*Capability, len(capabilities)),
		byLayer: make(map[string][]string),
	}

	for i := range capabilities {
		record := capabilities[i]
		if err := record.validate(); err != nil {
			return nil, err
		}
		if _, exists := c.byID[record.ID]; exists {
			return nil, fmt.Errorf("duplicate capability id %q", record.ID)
		}
		record.ensureProvenance()

		c.byID[record.ID] = &record
		c.byLayer[record.Layer] = append(c.byLayer[record.Layer], record.ID)
		c.ids = append(c.ids, record.ID)
	}

	sort.Strings(c.ids)
	for layer := range c.byLayer {
		sort.Strings(c.byLayer[layer])
	}

	return c, nil
}

// Lookup returns the capability for an id, or false when absent.
func (c *Catalog) Lookup(id string) (*Capability, bool) {
	cap, ok := c.byID[id]
	return cap, ok
}

// InLayer returns the ids of all capabilities owned by a layer, sorted.
func (c *Catalog) InLayer(layer string) []string {
	return c.byLayer[layer]
}

// IDs returns every capability id in sorted order.
func (c *Catalog) IDs() []string {
	return c.ids
}

// Len returns the number of capabilities.
func (c *Catalog) Len() int {
	return len(c.ids)
}
