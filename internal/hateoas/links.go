// Package hateoas renders declarative link specifications into hypermedia
// blocks embedded in resource responses.
package hateoas

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	appErrors "github.com/akademia-dev/college-api/pkg/errors"
)

// Identifiable is any entity exposing a numeric identity.
type Identifiable interface {
	EntityID() int64
}

// Spec is a link specification node: either a Leaf describing a single link
// or a Group of further named specs.
type Spec interface {
	spec()
}

// Leaf describes one link. The target identifier is Value when present,
// otherwise the subject entity's own identity. Body is an optional
// request-body template passed through unchanged as a client hint.
type Leaf struct {
	Route  string
	Param  string
	Method string
	Value  *int64
	Body   map[string]interface{}
}

func (Leaf) spec() {}

// Group nests further named specs, preserving their order.
type Group []Entry

func (Group) spec() {}

// Entry pairs a link name with its spec. Configs are slices rather than maps
// so that output order follows insertion order.
type Entry struct {
	Name string
	Spec Spec
}

// Config is the ordered top-level link specification.
type Config []Entry

// ID returns a pointer suitable for Leaf.Value overrides.
func ID(v int64) *int64 { return &v }

// Link is a rendered leaf entry.
type Link struct {
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Body   map[string]interface{} `json:"body,omitempty"`
}

// NamedLink pairs a rendered link (or nested Links) with its name.
type NamedLink struct {
	Name  string
	Value interface{}
}

// Links is an ordered set of rendered links. It marshals to a JSON object
// whose keys appear in insertion order.
type Links []NamedLink

// MarshalJSON renders the ordered object form.
func (l Links) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Embedded wraps an entity so it marshals with a trailing _links member.
// The entity must marshal to a JSON object.
type Embedded struct {
	Entity interface{}
	Links  Links
}

// MarshalJSON splices the _links member into the entity's object form.
func (e Embedded) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Entity)
	if err != nil {
		return nil, err
	}
	if len(e.Links) == 0 {
		return raw, nil
	}
	links, err := json.Marshal(e.Links)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return raw, nil
	}
	var buf bytes.Buffer
	buf.Write(trimmed[:len(trimmed)-1])
	if len(trimmed) > 2 {
		buf.WriteByte(',')
	}
	buf.WriteString(`"_links":`)
	buf.Write(links)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Resolver turns a named route and parameter value into an absolute href.
type Resolver interface {
	Resolve(route, param string, value int64) (string, error)
}

// RouteTable is a Resolver backed by a static route-name to path-template
// registry, e.g. "course" -> "/api/v1/courses/:id".
type RouteTable struct {
	baseURL string
	routes  map[string]string
}

// NewRouteTable builds a RouteTable. baseURL must not end with a slash.
func NewRouteTable(baseURL string, routes map[string]string) *RouteTable {
	return &RouteTable{baseURL: strings.TrimRight(baseURL, "/"), routes: routes}
}

// Resolve substitutes the parameter placeholder and prefixes the base URL.
func (t *RouteTable) Resolve(route, param string, value int64) (string, error) {
	tmpl, ok := t.routes[route]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrRouteResolution, "unknown route "+route)
	}
	if param != "" {
		placeholder := ":" + param
		if !strings.Contains(tmpl, placeholder) {
			return "", appErrors.Clone(appErrors.ErrRouteResolution, "route "+route+" has no parameter "+param)
		}
		tmpl = strings.Replace(tmpl, placeholder, strconv.FormatInt(value, 10), 1)
	}
	return t.baseURL + tmpl, nil
}

// Generate walks the configuration and renders one link per leaf, recursing
// into groups. It is a pure transformation: identical inputs yield identical
// output, and the only failure mode is an unresolvable route.
func Generate(entity Identifiable, cfg Config, resolver Resolver) (Links, error) {
	links := make(Links, 0, len(cfg))
	for _, entry := range cfg {
		switch spec := entry.Spec.(type) {
		case Leaf:
			link, err := renderLeaf(entity, spec, resolver)
			if err != nil {
				return nil, err
			}
			links = append(links, NamedLink{Name: entry.Name, Value: link})
		case Group:
			nested, err := Generate(entity, Config(spec), resolver)
			if err != nil {
				return nil, err
			}
			links = append(links, NamedLink{Name: entry.Name, Value: nested})
		}
	}
	return links, nil
}

func renderLeaf(entity Identifiable, leaf Leaf, resolver Resolver) (Link, error) {
	target := entity.EntityID()
	if leaf.Value != nil {
		target = *leaf.Value
	}
	href, err := resolver.Resolve(leaf.Route, leaf.Param, target)
	if err != nil {
		return Link{}, err
	}
	return Link{Href: href, Method: leaf.Method, Body: leaf.Body}, nil
}
