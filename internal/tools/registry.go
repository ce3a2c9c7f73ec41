// Package tools holds the closed set of external-data tools the assistant can
// call. Each tool is a Descriptor with a typed parameter schema; the Registry
// is built once at startup and is read-only afterwards.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ErrInvalidArguments is returned when a tool call names an unknown
// parameter, omits a required one or passes a value of the wrong type.
var ErrInvalidArguments = errors.New("tools: invalid arguments")

// ParamType is the value type a parameter accepts.
type ParamType string

const (
	// String accepts JSON strings.
	String ParamType = "string"
	// Int accepts JSON numbers with an integral value.
	Int ParamType = "integer"
)

// Param describes one named parameter. A parameter without Required set
// falls back to Default when omitted.
type Param struct {
	Name     string
	Type     ParamType
	Default  any
	Required bool
	// Desc is shown in the tool schema and in GET /api/tools.
	Desc string
}

// Func is the callable behind a tool.
type Func func(ctx context.Context, args Args) (*Result, error)

// Descriptor is one registered tool.
type Descriptor struct {
	Name        string
	Description string
	// Params is ordered; the catalog lists them in this order.
	Params []Param
	Call   Func
}

// Registry maps action names to descriptors. It has no mutating methods.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

// NewRegistry builds a registry from descs, in order. Duplicate names, empty
// names and missing callables are rejected.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descs))}
	for i := range descs {
		d := descs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("tools: descriptor %d has no name", i)
		}
		if d.Call == nil {
			return nil, fmt.Errorf("tools: %s has no callable", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", d.Name)
		}
		d.Params = append([]Param(nil), d.Params...)
		r.byName[d.Name] = &d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// RenderCatalog returns one line per tool:
//
//	- name(param=default, other=required): description
func (r *Registry) RenderCatalog() string {
	var b strings.Builder
	for i, name := range r.order {
		d := r.byName[name]
		if i > 0 {
			b.WriteByte('\n')
		}
		params := make([]string, len(d.Params))
		for j, p := range d.Params {
			params[j] = p.Name + "=" + p.renderDefault()
		}
		fmt.Fprintf(&b, "- %s(%s): %s", d.Name, strings.Join(params, ", "), d.Description)
	}
	return b.String()
}

// ToolInfos returns the eino tool schema of every tool, in registration order.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].ToolInfo())
	}
	return out
}

func (p Param) renderDefault() string {
	if p.Required {
		return "required"
	}
	if s, ok := p.Default.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(p.Default)
}

// ToolInfo describes d as an eino tool schema.
func (d *Descriptor) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.Params))
	for _, p := range d.Params {
		t := schema.String
		if p.Type == Int {
			t = schema.Integer
		}
		params[p.Name] = &schema.ParameterInfo{Type: t, Desc: p.Desc, Required: p.Required}
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Bind validates raw against the parameter schema and returns the complete
// argument set with defaults filled in. Every failure wraps
// ErrInvalidArguments.
func (d *Descriptor) Bind(raw map[string]any) (Args, error) {
	known := make(map[string]Param, len(d.Params))
	for _, p := range d.Params {
		known[p.Name] = p
	}

	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrInvalidArguments, d.Name, strings.Join(unknown, ", "))
	}

	args := make(Args, len(d.Params))
	for _, p := range d.Params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: %s requires %s", ErrInvalidArguments, d.Name, p.Name)
			}
			args[p.Name] = p.Default
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, d.Name, err)
		}
		args[p.Name] = cv
	}
	return args, nil
}

// coerce checks v against the parameter type. JSON decodes numbers as
// float64, so integral floats are accepted for Int parameters.
func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", p.Name, v)
		}
		return s, nil
	case Int:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%s must be an integer, got %v", p.Name, n)
			}
			return int(n), nil
		}
		return nil, fmt.Errorf("%s must be an integer, got %T", p.Name, v)
	}
	return nil, fmt.Errorf("%s has unsupported type %q", p.Name, p.Type)
}

// Args are bound, validated tool arguments.
type Args map[string]any

// String returns the string argument name, or "" if absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument name, or 0 if absent.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}
