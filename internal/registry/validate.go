package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateParams performs a strict check of supplied parameters against a
// type's schema: required parameters must be present, unknown parameters are
// rejected, and every value must be convertible to its declared type.
// Defaults fill the gaps. The returned map is a fresh copy.
func ValidateParams(spec *TypeSpec, params map[string]any) (map[string]any, error) {
	known := make(map[string]ParamSpec, len(spec.Params))
	for _, p := range spec.Params {
		known[p.Name] = p
	}

	var errs []string
	for name := range params {
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown parameter '%s'", name))
		}
	}
	sort.Strings(errs)

	resolved := make(map[string]any, len(spec.Params))
	for _, p := range spec.Params {
		val, present := params[p.Name]
		if !present {
			if p.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter '%s'", p.Name))
			} else if p.Default != nil {
				resolved[p.Name] = p.Default
			}
			continue
		}
		if len(p.Item) > 0 {
			errs = append(errs, checkItems(p.Name, val, p.Item)...)
			resolved[p.Name] = val
			continue
		}
		if p.Type == cty.NilType || p.Type.Equals(cty.DynamicPseudoType) {
			resolved[p.Name] = val
			continue
		}
		checked, err := checkType(val, p.Type)
		if err != nil {
			errs = append(errs, fmt.Sprintf("parameter '%s': %v", p.Name, err))
			continue
		}
		resolved[p.Name] = checked
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid parameters:\n- %s", strings.Join(errs, "\n- "))
	}
	return resolved, nil
}

// checkItems validates every element of a collection parameter against its
// item schema. Elements pass through unchanged; normalization of structured
// values stays with the node constructors.
func checkItems(param string, val any, schema []ParamSpec) []string {
	items, ok := val.([]any)
	if !ok {
		return []string{fmt.Sprintf("parameter '%s': expected a list of objects, got %T", param, val)}
	}

	known := make(map[string]ParamSpec, len(schema))
	for _, f := range schema {
		known[f.Name] = f
	}

	var errs []string
	for i, raw := range items {
		obj, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("parameter '%s[%d]': expected an object, got %T", param, i, raw))
			continue
		}
		var fieldErrs []string
		for name := range obj {
			if _, ok := known[name]; !ok {
				fieldErrs = append(fieldErrs, fmt.Sprintf("parameter '%s[%d]': unknown field '%s'", param, i, name))
			}
		}
		sort.Strings(fieldErrs)
		errs = append(errs, fieldErrs...)
		for _, f := range schema {
			fieldVal, present := obj[f.Name]
			if !present {
				if f.Required {
					errs = append(errs, fmt.Sprintf("parameter '%s[%d]': missing required field '%s'", param, i, f.Name))
				}
				continue
			}
			if f.Type == cty.NilType || f.Type.Equals(cty.DynamicPseudoType) {
				continue
			}
			if _, err := checkType(fieldVal, f.Type); err != nil {
				errs = append(errs, fmt.Sprintf("parameter '%s[%d].%s': %v", param, i, f.Name, err))
			}
		}
	}
	return errs
}

// checkType converts a native Go value to the declared cty type and back,
// normalizing the representation (all numbers become float64, lists become
// []any).
func checkType(val any, want cty.Type) (any, error) {
	ctyVal, err := ctyFromNative(val)
	if err != nil {
		return nil, fmt.Errorf("cannot encode value %v: %w", val, err)
	}
	converted, err := convert.Convert(ctyVal, want)
	if err != nil {
		return nil, fmt.Errorf("want %s: %w", want.FriendlyName(), err)
	}
	return nativeValue(converted)
}

// ctyFromNative encodes decoded parameter values. Slices become tuples and
// maps become objects so that convert.Convert can unify mixed element types
// against the declared schema type.
func ctyFromNative(val any) (cty.Value, error) {
	switch v := val.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(v))
		for _, item := range v {
			elem, err := ctyFromNative(item)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, elem)
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(v))
		for key, item := range v {
			elem, err := ctyFromNative(item)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = elem
		}
		return cty.ObjectVal(attrs), nil
	default:
		impliedType, err := gocty.ImpliedType(val)
		if err != nil {
			return cty.NilVal, err
		}
		return gocty.ToCtyValue(val, impliedType)
	}
}

// nativeValue lowers a cty value back to plain Go types.
func nativeValue(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := nativeValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := nativeValue(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = native
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", ty.FriendlyName())
	}
}
