// Package enums provides the enum reflection registry: a process-wide
// table from an enum type tag to a small vtable that names, parses and
// validates the enum's numbers.
//
// Generated code registers one vtable per enum type from init functions,
// in whatever order the linker runs them. The index is built on first
// lookup and never changes afterwards, so lookups need no locking.
//
//	func init() {
//		enums.Register(enums.FromNames("acme.Color", map[int32]string{0: "RED", 1: "GREEN"}))
//	}
//
// Registering two vtables for the same tag is a configuration error. It
// is detected when the index is built, and every later lookup returns
// the same error.
package enums

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ezachrisen/cove"
)

// Vtable holds the reflection operations for one enum type.
type Vtable struct {
	// Tag is the stable identifier of the enum type, usually its fully
	// qualified protobuf name.
	Tag string

	// ToString returns the name of a number.
	ToString func(number int32) (string, bool)

	// FromString returns the number of a name.
	FromString func(name string) (int32, bool)
}

// IsValid reports whether number is a declared value of the enum.
func (v *Vtable) IsValid(number int32) bool {
	_, ok := v.ToString(number)
	return ok
}

// FromNames builds a vtable from a number to name table.
func FromNames(tag string, names map[int32]string) Vtable {
	byName := make(map[string]int32, len(names))
	byNumber := make(map[int32]string, len(names))
	for n, s := range names {
		byNumber[n] = s
		// Aliases share a number; the lowest number wins for a name.
		if prev, ok := byName[s]; !ok || n < prev {
			byName[s] = n
		}
	}
	return Vtable{
		Tag: tag,
		ToString: func(n int32) (string, bool) {
			s, ok := byNumber[n]
			return s, ok
		},
		FromString: func(s string) (int32, bool) {
			n, ok := byName[s]
			return n, ok
		},
	}
}

// Registry collects vtables and indexes them by tag on first use.
type Registry struct {
	mu      sync.Mutex
	pending []Vtable
	built   bool

	once  sync.Once
	index map[string]*Vtable
	err   error
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register adds a vtable. It must be called before the first lookup;
// registering afterwards panics, since the index is immutable once built.
func (r *Registry) Register(v Vtable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		panic(fmt.Sprintf("enums: register %q after first lookup", v.Tag))
	}
	r.pending = append(r.pending, v)
}

func (r *Registry) build() {
	r.mu.Lock()
	r.built = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	index := make(map[string]*Vtable, len(pending))
	var dups []string
	for i := range pending {
		v := &pending[i]
		if _, ok := index[v.Tag]; ok {
			dups = append(dups, v.Tag)
			continue
		}
		index[v.Tag] = v
	}

	if len(dups) > 0 {
		sort.Strings(dups)
		r.err = fmt.Errorf("%w: %s", cove.ErrDuplicateEnum, strings.Join(dedupe(dups), ", "))
	}
	r.index = index
}

func dedupe(s []string) []string {
	out := s[:0]
	for i, x := range s {
		if i == 0 || x != s[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// Validate builds the index if needed and reports any duplicate
// registrations.
func (r *Registry) Validate() error {
	r.once.Do(r.build)
	return r.err
}

// Lookup returns the vtable registered for tag. The first call builds the
// index. If any tag was registered twice, Lookup returns that error for
// every tag.
func (r *Registry) Lookup(tag string) (*Vtable, bool, error) {
	r.once.Do(r.build)
	if r.err != nil {
		return nil, false, r.err
	}
	v, ok := r.index[tag]
	return v, ok, nil
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.once.Do(r.build)
	tags := make([]string, 0, len(r.index))
	for t := range r.index {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// EnumName returns the name of number in the enum identified by tag.
// It makes the registry usable wherever enum values are printed.
func (r *Registry) EnumName(tag string, number int32) (string, bool) {
	v, ok, err := r.Lookup(tag)
	if err != nil || !ok {
		return "", false
	}
	return v.ToString(number)
}

// EnumNumber returns the number of name in the enum identified by tag.
func (r *Registry) EnumNumber(tag, name string) (int32, bool) {
	v, ok, err := r.Lookup(tag)
	if err != nil || !ok {
		return 0, false
	}
	return v.FromString(name)
}

// Default is the process-wide registry populated by generated code.
var Default = New()

// Register adds a vtable to the Default registry.
func Register(v Vtable) { Default.Register(v) }

// Lookup finds a vtable in the Default registry.
func Lookup(tag string) (*Vtable, bool, error) { return Default.Lookup(tag) }
