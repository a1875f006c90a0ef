package catalog

import (
	"github.com/pkg/errors"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/physical"
)

var ErrUnknownResource = errors.New("unknown resource kind")

// AuxFetch marks columns whose values come from an extra per-row remote
// call rather than the record of the listing page itself.
type AuxFetch int

const (
	AuxNone AuxFetch = iota
	AuxThingGroups
	AuxThingShadow
)

// ColumnDescriptor describes one column of a registry resource.
type ColumnDescriptor struct {
	Name     string
	Type     thingsql.Type
	Nullable bool
	// Path is the JSON path of the attribute inside a raw remote record.
	Path []string
	Aux  AuxFetch
}

// ResourceDescriptor describes one remote resource kind: its columns, its
// listing endpoint and what the remote API can filter or sort natively.
// Descriptors are built once at package initialization and are read-only,
// so concurrent scans may share them freely.
type ResourceDescriptor struct {
	Kind     string
	Table    string
	Endpoint string
	// ListKey is the response object key holding the page's records.
	ListKey string
	Columns []ColumnDescriptor

	filters  map[string]map[physical.Relation]physical.FilterRule
	sortable map[string]struct{}
}

func (d *ResourceDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return d.Columns[i], true
		}
	}
	return ColumnDescriptor{}, false
}

func (d *ResourceDescriptor) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i := range d.Columns {
		out[i] = d.Columns[i].Name
	}
	return out
}

func (d *ResourceDescriptor) NativeFilter(column string, relation physical.Relation) (physical.FilterRule, bool) {
	relations, ok := d.filters[column]
	if !ok {
		return physical.FilterRule{}, false
	}
	rule, ok := relations[relation]
	return rule, ok
}

func (d *ResourceDescriptor) NativeFilterRelations(column string) []physical.Relation {
	relations, ok := d.filters[column]
	if !ok {
		return nil
	}
	out := make([]physical.Relation, 0, len(relations))
	for relation := range relations {
		out = append(out, relation)
	}
	return out
}

func (d *ResourceDescriptor) NativeSort(column string) bool {
	_, ok := d.sortable[column]
	return ok
}

// SupportsDisjunction is false for the registry API: its listing filters
// take a single value per attribute.
func (d *ResourceDescriptor) SupportsDisjunction() bool {
	return false
}

func (d *ResourceDescriptor) ColumnType(column string) (thingsql.Type, bool) {
	descriptor, ok := d.Column(column)
	if !ok {
		return thingsql.Type{}, false
	}
	return descriptor.Type, ok
}

// Describe looks up the descriptor for a resource kind. It's a pure lookup,
// safe for concurrent use.
func Describe(kind string) (*ResourceDescriptor, error) {
	for _, descriptor := range descriptors {
		if descriptor.Kind == kind {
			return descriptor, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownResource, "kind %s", kind)
}

// DescribeTable looks up the descriptor by its exposed table name.
func DescribeTable(table string) (*ResourceDescriptor, error) {
	for _, descriptor := range descriptors {
		if descriptor.Table == table {
			return descriptor, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownResource, "table %s", table)
}

// Descriptors lists all supported resource kinds.
func Descriptors() []*ResourceDescriptor {
	out := make([]*ResourceDescriptor, len(descriptors))
	copy(out, descriptors)
	return out
}
