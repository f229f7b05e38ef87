package rio

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
)

// Direction tells whether the host writes (Control) or reads (Indicator) a
// resource. For FIFOs Control means host-to-target.
type Direction uint8

const (
	Control Direction = iota
	Indicator
)

func (d Direction) String() string {
	if d == Indicator {
		return "indicator"
	}
	return "control"
}

// ResourceKind separates registers from streaming FIFOs.
type ResourceKind uint8

const (
	KindRegister ResourceKind = iota
	KindFifo
)

func (k ResourceKind) String() string {
	if k == KindFifo {
		return "fifo"
	}
	return "register"
}

// Resource names one control, indicator or FIFO of a bitfile. It is
// immutable; for FIFOs the descriptor describes a single element.
type Resource struct {
	name      string
	address   uint32
	desc      *codec.Descriptor
	direction Direction
	kind      ResourceKind
}

// NewRegister describes a control or indicator register.
func NewRegister(name string, address uint32, desc *codec.Descriptor, dir Direction) *Resource {
	return &Resource{name: name, address: address, desc: desc, direction: dir, kind: KindRegister}
}

// NewFifo describes a DMA FIFO whose elements have the shape elem.
func NewFifo(name string, address uint32, elem *codec.Descriptor, dir Direction) *Resource {
	return &Resource{name: name, address: address, desc: elem, direction: dir, kind: KindFifo}
}

func (r *Resource) Name() string                  { return r.name }
func (r *Resource) Address() uint32               { return r.address }
func (r *Resource) Descriptor() *codec.Descriptor { return r.desc }
func (r *Resource) Direction() Direction          { return r.direction }
func (r *Resource) Kind() ResourceKind            { return r.kind }

func (r *Resource) String() string {
	return fmt.Sprintf("%s %s %s@0x%X %s", r.direction, r.kind, r.name, r.address, r.desc)
}

// Catalog is the immutable resource table of one bitfile, as derived from
// the vendor-generated interface.
type Catalog struct {
	Name      string
	Bitfile   string
	Signature string

	byName    map[string]*Resource
	byAddress map[uint32]*Resource
	ordered   []*Resource
}

// NewCatalog builds a catalog. Names must be unique; registers and FIFOs
// live in separate address spaces so each may reuse the other's addresses.
func NewCatalog(name, bitfile, signature string, resources ...*Resource) (*Catalog, error) {
	c := &Catalog{
		Name:      name,
		Bitfile:   bitfile,
		Signature: signature,
		byName:    make(map[string]*Resource, len(resources)),
		byAddress: make(map[uint32]*Resource, len(resources)),
	}
	for _, r := range resources {
		if r == nil || r.desc == nil {
			return nil, fmt.Errorf("rio: catalog %s: resource without descriptor", name)
		}
		if err := r.desc.Validate(); err != nil {
			return nil, fmt.Errorf("rio: catalog %s: %s: %w", name, r.name, err)
		}
		if _, dup := c.byName[r.name]; dup {
			return nil, fmt.Errorf("rio: catalog %s: duplicate resource %q", name, r.name)
		}
		c.byName[r.name] = r
		if r.kind == KindRegister {
			c.byAddress[r.address] = r
		}
		c.ordered = append(c.ordered, r)
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		if c.ordered[i].kind != c.ordered[j].kind {
			return c.ordered[i].kind < c.ordered[j].kind
		}
		return c.ordered[i].address < c.ordered[j].address
	})
	return c, nil
}

// Lookup finds a resource by name.
func (c *Catalog) Lookup(name string) (*Resource, error) {
	if r, ok := c.byName[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrResourceNotFound, name, c.Name)
}

// ByAddress returns the register at addr.
func (c *Catalog) ByAddress(addr uint32) (*Resource, bool) {
	r, ok := c.byAddress[addr]
	return r, ok
}

// Fifo returns the FIFO with the given number.
func (c *Catalog) Fifo(number uint32) (*Resource, bool) {
	for _, r := range c.ordered {
		if r.kind == KindFifo && r.address == number {
			return r, true
		}
	}
	return nil, false
}

// Resources lists registers in address order followed by FIFOs.
func (c *Catalog) Resources() []*Resource {
	return append([]*Resource(nil), c.ordered...)
}

func (c *Catalog) Registers() []*Resource { return c.filter(KindRegister) }

func (c *Catalog) Fifos() []*Resource { return c.filter(KindFifo) }

func (c *Catalog) filter(kind ResourceKind) []*Resource {
	var out []*Resource
	for _, r := range c.ordered {
		if r.kind == kind {
			out = append(out, r)
		}
	}
	return out
}
