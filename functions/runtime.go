package functions

import (
	"regexp"
	"sync"

	"github.com/ezachrisen/cove/value"
)

// runtime is the standard Runtime: enum names come from an enum
// resolver and compiled patterns are cached for the runtime's lifetime.
type runtime struct {
	enums value.Enums
	cache sync.Map // pattern -> *regexp.Regexp
}

// CheckEnums reports a registration error of enums, such as a tag
// registered twice, if enums can report one.
func CheckEnums(enums value.Enums) error {
	if v, ok := enums.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// NewRuntime returns a Runtime naming enums through enums, which may be
// nil. The returned Runtime is safe for concurrent use.
func NewRuntime(enums value.Enums) Runtime {
	return &runtime{enums: enums}
}

func (r *runtime) EnumName(tag string, number int32) (string, bool) {
	if r.enums == nil {
		return "", false
	}
	return r.enums.EnumName(tag, number)
}

func (r *runtime) EnumNumber(tag, name string) (int32, bool) {
	n, ok := r.enums.(value.EnumNumbers)
	if !ok {
		return 0, false
	}
	return n.EnumNumber(tag, name)
}

func (r *runtime) Regexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := r.cache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.cache.Store(pattern, re)
	return re, nil
}
