package enums

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// FromDescriptor builds a vtable backed by a protobuf enum descriptor.
// Alias names resolve to their number; a number with aliases is named by
// its first declared value.
func FromDescriptor(ed protoreflect.EnumDescriptor) Vtable {
	values := ed.Values()
	return Vtable{
		Tag: string(ed.FullName()),
		ToString: func(n int32) (string, bool) {
			v := values.ByNumber(protoreflect.EnumNumber(n))
			if v == nil {
				return "", false
			}
			return string(v.Name()), true
		},
		FromString: func(s string) (int32, bool) {
			v := values.ByName(protoreflect.Name(s))
			if v == nil {
				return 0, false
			}
			return int32(v.Number()), true
		},
	}
}

// Descriptors returns every enum declared in a file, including enums
// nested in messages, in declaration order.
func Descriptors(fd protoreflect.FileDescriptor) []protoreflect.EnumDescriptor {
	var out []protoreflect.EnumDescriptor
	out = appendEnums(out, fd.Enums())

	stack := []protoreflect.MessageDescriptors{fd.Messages()}
	for len(stack) > 0 {
		msgs := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := msgs.Len() - 1; i >= 0; i-- {
			md := msgs.Get(i)
			stack = append(stack, md.Messages())
		}
		for i := 0; i < msgs.Len(); i++ {
			out = appendEnums(out, msgs.Get(i).Enums())
		}
	}
	return out
}

func appendEnums(out []protoreflect.EnumDescriptor, eds protoreflect.EnumDescriptors) []protoreflect.EnumDescriptor {
	for i := 0; i < eds.Len(); i++ {
		out = append(out, eds.Get(i))
	}
	return out
}

// RegisterFiles registers a vtable for every enum in files with r.
func RegisterFiles(r *Registry, files *protoregistry.Files) {
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		for _, ed := range Descriptors(fd) {
			r.Register(FromDescriptor(ed))
		}
		return true
	})
}
