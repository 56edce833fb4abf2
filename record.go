package cloak

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/zoobzio/sentinel"
)

// TagText marks a string or []string field as a text node of a Record.
const TagText = "text"

func init() {
	sentinel.Tag("cloak")
}

// Record adapts a struct value to Document.
//
// Fields tagged `cloak:"text"` are text nodes; the tag is valid on string
// and []string fields, including fields of nested structs and struct
// pointers. Node ids are dotted field paths, with an index for slice
// elements:
//
//	type Contact struct {
//	    Name    string   `cloak:"text"`
//	    Notes   []string `cloak:"text"`
//	    Address *Address
//	}
//
//	// ids: Name, Notes[0], Notes[1], Address.Street
//
// Nodes behind nil pointers are absent.
type Record[T Cloner[T]] struct {
	Value T

	id   string
	plan *recordPlan
}

// recordPlan lists the text fields of a struct type in declaration order.
type recordPlan struct {
	typeName string
	fields   []recordField
}

// recordField describes how to reach a single text field.
type recordField struct {
	index      []int  // reflect.Value.FieldByIndex access path
	name       string // dotted field path
	ptrIndices []int  // indices where pointer dereference is needed
	isSlice    bool   // true if field is []string
}

// recordNode is one resolved text node.
type recordNode struct {
	id    string
	value reflect.Value
}

// NewRecord wraps v. T must be a struct or a pointer to a struct.
// Invalid `cloak` tags are reported with ErrInvalidTag.
func NewRecord[T Cloner[T]](id string, v T) (*Record[T], error) {
	plan, err := planFor(reflect.TypeFor[T](), buildRecordPlan[T])
	if err != nil {
		return nil, err
	}
	return &Record[T]{Value: v, id: id, plan: plan}, nil
}

// Clone returns a record over a deep copy of the value.
func (r *Record[T]) Clone() *Record[T] {
	return &Record[T]{Value: r.Value.Clone(), id: r.id, plan: r.plan}
}

// DocumentID returns the record identifier.
func (r *Record[T]) DocumentID() string {
	return r.id
}

// TypeName returns the name of the wrapped struct type.
func (r *Record[T]) TypeName() string {
	return r.plan.typeName
}

// NodeIDs returns the ids of the text nodes present in the value.
func (r *Record[T]) NodeIDs() []string {
	nodes := r.nodes()
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

// Text returns the text of node id.
func (r *Record[T]) Text(id string) (string, bool) {
	for _, n := range r.nodes() {
		if n.id == id {
			return n.value.String(), true
		}
	}
	return "", false
}

// SetText replaces the text of node id.
func (r *Record[T]) SetText(id, text string) error {
	for _, n := range r.nodes() {
		if n.id == id {
			if !n.value.CanSet() {
				return fmt.Errorf("%w: field %s is not settable", ErrInvalidDocument, id)
			}
			n.value.SetString(text)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// nodes resolves every text node of the current value.
func (r *Record[T]) nodes() []recordNode {
	rv := reflect.ValueOf(&r.Value).Elem()
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	var nodes []recordNode
	for _, f := range r.plan.fields {
		field, ok := getField(rv, f)
		if !ok {
			continue
		}
		if f.isSlice {
			for i := 0; i < field.Len(); i++ {
				nodes = append(nodes, recordNode{
					id:    f.name + "[" + strconv.Itoa(i) + "]",
					value: field.Index(i),
				})
			}
			continue
		}
		nodes = append(nodes, recordNode{id: f.name, value: field})
	}
	return nodes
}

// buildRecordPlan creates the record plan for type T by scanning struct tags.
func buildRecordPlan[T Cloner[T]]() (*recordPlan, error) {
	rt := reflect.TypeFor[T]()

	var spec sentinel.Metadata
	switch {
	case rt.Kind() == reflect.Struct:
		spec = sentinel.Scan[T]()
	case rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct:
		spec = *scanNestedType(rt.Elem())
	default:
		return nil, fmt.Errorf("%w: record type %s is not a struct", ErrInvalidDocument, rt)
	}

	plan := &recordPlan{typeName: spec.TypeName}
	if err := buildRecordPlanRecursive(plan, spec, nil, nil, ""); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildRecordPlanRecursive recursively processes fields and nested structs.
func buildRecordPlanRecursive(plan *recordPlan, spec sentinel.Metadata, parentIndex, ptrIndices []int, namePrefix string) error {
	for _, field := range spec.Fields {
		fullIndex := append(append([]int{}, parentIndex...), field.Index...)
		fullName := field.Name
		if namePrefix != "" {
			fullName = namePrefix + "." + field.Name
		}

		val, tagged := field.Tags["cloak"]

		// Handle nested structs
		if !tagged && field.Kind == sentinel.KindStruct {
			if nested := scanNestedType(field.ReflectType); nested != nil {
				if err := buildRecordPlanRecursive(plan, *nested, fullIndex, ptrIndices, fullName); err != nil {
					return err
				}
			}
			continue
		}

		// Handle pointer to struct
		if !tagged && field.Kind == sentinel.KindPointer && field.ReflectType.Elem().Kind() == reflect.Struct {
			if nested := scanNestedType(field.ReflectType.Elem()); nested != nil {
				newPtrIndices := append(append([]int{}, ptrIndices...), len(fullIndex)-1)
				if err := buildRecordPlanRecursive(plan, *nested, fullIndex, newPtrIndices, fullName); err != nil {
					return err
				}
			}
			continue
		}

		if !tagged {
			continue
		}
		if val != TagText {
			return fmt.Errorf("%w: cloak:%q on field %s", ErrInvalidTag, val, fullName)
		}

		isString := field.ReflectType.Kind() == reflect.String
		isStringSlice := field.ReflectType.Kind() == reflect.Slice &&
			field.ReflectType.Elem().Kind() == reflect.String
		if !isString && !isStringSlice {
			return fmt.Errorf("%w: cloak:%q on field %s of type %s", ErrInvalidTag, val, fullName, field.Type)
		}

		plan.fields = append(plan.fields, recordField{
			index:      fullIndex,
			name:       fullName,
			ptrIndices: ptrIndices,
			isSlice:    isStringSlice,
		})
	}

	return nil
}

// scanNestedType scans a nested struct type and returns its metadata.
func scanNestedType(rt reflect.Type) *sentinel.Metadata {
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return &spec
	}

	if rt.Kind() != reflect.Struct {
		return nil
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        map[string]string{},
		}
		if val, ok := sf.Tag.Lookup("cloak"); ok {
			fm.Tags["cloak"] = val
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return &spec
}

// getField navigates a field path, dereferencing pointers as needed.
func getField(rv reflect.Value, f recordField) (reflect.Value, bool) {
	if len(f.ptrIndices) == 0 {
		return rv.FieldByIndex(f.index), true
	}

	current := rv
	ptrSet := make(map[int]bool, len(f.ptrIndices))
	for _, idx := range f.ptrIndices {
		ptrSet[idx] = true
	}

	for i, idx := range f.index {
		current = current.Field(idx)

		if ptrSet[i] {
			if current.IsNil() {
				return reflect.Value{}, false
			}
			current = current.Elem()
		}
	}

	return current, true
}
