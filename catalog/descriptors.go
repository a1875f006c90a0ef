package catalog

import (
	"strings"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/physical"
)

const (
	KindThing      = "thing"
	KindThingGroup = "thing-group"
	KindThingType  = "thing-type"
)

var descriptors = []*ResourceDescriptor{thingDescriptor, thingGroupDescriptor, thingTypeDescriptor}

var thingDescriptor = &ResourceDescriptor{
	Kind:     KindThing,
	Table:    "aws_things",
	Endpoint: "/things",
	ListKey:  "things",
	Columns: []ColumnDescriptor{
		{Name: "thing_name", Type: thingsql.String, Nullable: false, Path: []string{"thingName"}},
		{Name: "thing_type_name", Type: thingsql.String, Nullable: true, Path: []string{"thingTypeName"}},
		{Name: "thing_arn", Type: thingsql.String, Nullable: true, Path: []string{"thingArn"}},
		{Name: "thing_version", Type: thingsql.Int, Nullable: true, Path: []string{"version"}},
		{Name: "thing_attributes", Type: thingsql.Json, Nullable: true, Path: []string{"attributes"}},
		{Name: "thing_groups", Type: thingsql.Json, Nullable: true, Aux: AuxThingGroups},
		{Name: "thing_shadow_data", Type: thingsql.Json, Nullable: true, Aux: AuxThingShadow},
	},
	filters: map[string]map[physical.Relation]physical.FilterRule{
		"thing_type_name": {
			// listThings filters by thing type precisely.
			physical.Equal: {Parameter: "thingTypeName", Exact: true},
		},
	},
	sortable: map[string]struct{}{},
}

var thingGroupDescriptor = &ResourceDescriptor{
	Kind:     KindThingGroup,
	Table:    "aws_thing_groups",
	Endpoint: "/thing-groups",
	ListKey:  "thingGroups",
	Columns: []ColumnDescriptor{
		{Name: "thing_group_name", Type: thingsql.String, Nullable: false, Path: []string{"groupName"}},
		{Name: "thing_group_arn", Type: thingsql.String, Nullable: true, Path: []string{"groupArn"}},
	},
	filters: map[string]map[physical.Relation]physical.FilterRule{
		"thing_group_name": {
			// The listing endpoint only has a name prefix filter. For
			// equality the prefix narrows the fetch but matches more than
			// the exact name, so the predicate stays in the residual.
			physical.Equal: {Parameter: "namePrefixFilter", Exact: false},
			// LIKE with a single trailing wildcard is exactly a prefix
			// match, so it pushes down precisely.
			physical.Like: {Parameter: "namePrefixFilter", Exact: true, Rewrite: prefixPattern},
		},
	},
	sortable: map[string]struct{}{},
}

var thingTypeDescriptor = &ResourceDescriptor{
	Kind:     KindThingType,
	Table:    "aws_thing_types",
	Endpoint: "/thing-types",
	ListKey:  "thingTypes",
	Columns: []ColumnDescriptor{
		{Name: "thing_type_name", Type: thingsql.String, Nullable: false, Path: []string{"thingTypeName"}},
		{Name: "thing_type_arn", Type: thingsql.String, Nullable: true, Path: []string{"thingTypeArn"}},
		{Name: "thing_type_description", Type: thingsql.String, Nullable: true, Path: []string{"thingTypeProperties", "thingTypeDescription"}},
		{Name: "thing_type_searchable_attributes", Type: thingsql.StringSet, Nullable: true, Path: []string{"thingTypeProperties", "searchableAttributes"}},
		{Name: "thing_type_creation_date", Type: thingsql.Time, Nullable: true, Path: []string{"thingTypeMetadata", "creationDate"}},
	},
	filters: map[string]map[physical.Relation]physical.FilterRule{
		"thing_type_name": {
			physical.Equal: {Parameter: "thingTypeName", Exact: true},
		},
	},
	sortable: map[string]struct{}{},
}

// prefixPattern accepts LIKE patterns of the form "literal%": one wildcard,
// at the very end, no single-character wildcards. Anything else can't be
// expressed as a name prefix filter.
func prefixPattern(value thingsql.Value) (string, bool) {
	if value.Type.TypeID != thingsql.TypeIDString {
		return "", false
	}
	pattern := value.Str
	if !strings.HasSuffix(pattern, "%") {
		return "", false
	}
	prefix := pattern[:len(pattern)-1]
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return "", false
	}
	return prefix, true
}
