package dm

import "fmt"

// ObjectID identifies an object type.
type ObjectID uint16

// InstanceID identifies an instance of an object.
type InstanceID uint16

// ResourceID identifies a resource within an object.
type ResourceID uint16

// Path addresses a single resource of an object instance.
type Path struct {
	OID ObjectID
	IID InstanceID
	RID ResourceID
}

// String returns the path in /oid/iid/rid form.
func (p Path) String() string {
	return fmt.Sprintf("/%d/%d/%d", p.OID, p.IID, p.RID)
}

// Op is a capability bit set for a resource.
type Op uint8

// Resource capabilities.
const (
	OpRead Op = 1 << iota
	OpWrite
	OpExecute
)

// Has reports whether all bits in other are set.
func (o Op) Has(other Op) bool {
	return o&other == other
}

// String renders the capability set as "RWE" letters.
func (o Op) String() string {
	out := make([]byte, 0, 3)
	if o.Has(OpRead) {
		out = append(out, 'R')
	}
	if o.Has(OpWrite) {
		out = append(out, 'W')
	}
	if o.Has(OpExecute) {
		out = append(out, 'E')
	}
	return string(out)
}

// ResourceDef describes one resource of an object.
type ResourceDef struct {
	ID   ResourceID `json:"id"`
	Name string     `json:"name"`
	Kind Kind       `json:"kind"`
	Ops  Op         `json:"-"`
}
