package pubflow

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// TypeDescriptor declares one content type: its enabled field groups, its
// status set and its discoverability settings. Descriptors are registered
// once at startup and never mutated afterwards.
type TypeDescriptor struct {
	Name  string
	Title string

	// Statuses is the ordered publication status set. Empty means
	// DefaultStatuses.
	Statuses []Status

	// Fields is the set of optional field groups the type enables.
	Fields []Field

	// Slugify overrides the default "{type}/{title}" alias candidate rule.
	// Returning an empty string means no candidate can be derived.
	Slugify func(c *Content, raw string) string

	// Sitemap marks the type as sitemap-eligible.
	Sitemap bool

	// Feed marks the type as feed-eligible.
	Feed            bool
	FeedTitle       string
	FeedDescription string

	fields map[Field]struct{}
}

// HasField reports whether the type enables the given field group.
func (d *TypeDescriptor) HasField(f Field) bool {
	_, ok := d.fields[f]
	return ok
}

// HasStatus reports whether s belongs to the type's status set.
func (d *TypeDescriptor) HasStatus(s Status) bool {
	for _, v := range d.Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultStatus returns the hidden default state of the type's status set.
func (d *TypeDescriptor) DefaultStatus() Status {
	if len(d.Statuses) == 0 {
		return ""
	}
	return d.Statuses[0]
}

// Registry is the process-wide content type table. It is constructed once
// and read-mostly afterwards, so concurrent reads need no locking.
type Registry struct {
	types map[string]*TypeDescriptor
}

// NewRegistry builds a registry from the given descriptors. Duplicate or
// unnamed descriptors are rejected.
func NewRegistry(descs ...TypeDescriptor) (*Registry, error) {
	r := &Registry{types: make(map[string]*TypeDescriptor, len(descs))}

	for i := range descs {
		d := descs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("content type descriptor %d has no name", i)
		}
		if _, exists := r.types[d.Name]; exists {
			return nil, fmt.Errorf("content type %q is already registered", d.Name)
		}
		if len(d.Statuses) == 0 {
			d.Statuses = DefaultStatuses
		}
		d.fields = make(map[Field]struct{}, len(d.Fields))
		for _, f := range d.Fields {
			d.fields[f] = struct{}{}
		}
		r.types[d.Name] = &d
	}

	return r, nil
}

// Get returns the descriptor for name, or ErrTypeNotRegistered.
func (r *Registry) Get(name string) (*TypeDescriptor, error) {
	d, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, name)
	}
	return d, nil
}

// Has reports whether name is a registered content type.
func (r *Registry) Has(name string) bool {
	_, ok := r.types[name]
	return ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	names := maps.Keys(r.types)
	sort.Strings(names)
	return names
}
