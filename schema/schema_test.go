package schema_test

import (
	"testing"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/schema"
	"github.com/ezachrisen/cove/value"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

func field(name string, n int32, t descriptorpb.FieldDescriptorProto_Type, label descriptorpb.FieldDescriptorProto_Label, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(n),
		Type:     t.Enum(),
		Label:    label.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
)

// orderFile describes:
//
//	enum Color { RED = 0; GREEN = 1; }
//	message Order {
//	  string id = 1;
//	  repeated int64 items = 2;
//	  map<string, double> prices = 3;
//	  Color color = 4;
//	  Order parent = 5;
//	  uint32 qty = 6;
//	  bytes token = 7;
//	}
func orderFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("acme/order.proto"),
		Package: proto.String("acme"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Color"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("RED"), Number: proto.Int32(0)},
				{Name: proto.String("GREEN"), Number: proto.Int32(1)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Order"),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, optional, ""),
				field("items", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64, repeated, ""),
				field("prices", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, repeated, ".acme.Order.PricesEntry"),
				field("color", 4, descriptorpb.FieldDescriptorProto_TYPE_ENUM, optional, ".acme.Color"),
				field("parent", 5, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, optional, ".acme.Order"),
				field("qty", 6, descriptorpb.FieldDescriptorProto_TYPE_UINT32, optional, ""),
				field("token", 7, descriptorpb.FieldDescriptorProto_TYPE_BYTES, optional, ""),
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("PricesEntry"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, optional, ""),
					field("value", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, optional, ""),
				},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			}},
		}},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		t.Fatal(err)
	}
	return fd
}

func TestTypeOf(t *testing.T) {
	fd := orderFile(t)
	md := fd.Messages().ByName("Order")

	cases := map[string]string{
		"id":     "string",
		"items":  "[]int",
		"prices": "map[string]double",
		"color":  "enum(acme.Color)",
		"parent": "message(acme.Order)",
		"qty":    "uint",
		"token":  "bytes",
	}

	for name, want := range cases {
		got := schema.TypeOf(md.Fields().ByName(protoreflect.Name(name)))
		if got.String() != want {
			t.Errorf("field %s: wanted %s, got %s", name, want, got)
		}
	}
}

func TestRecursiveMessage(t *testing.T) {
	is := is.New(t)
	md := orderFile(t).Messages().ByName("Order")

	m := schema.MessageType(md)
	parent, ok := m.Field("parent")
	is.True(ok)
	is.True(parent.(*cove.Message) == m) // shared, not copied
	is.Equal(m.FieldNames(), []string{"color", "id", "items", "parent", "prices", "qty", "token"})
}

func TestBindings(t *testing.T) {
	md := orderFile(t).Messages().ByName("Order")
	fields := md.Fields()

	cases := map[string]struct {
		field     string
		target    schema.Target
		wantInput string
		wantError bool
	}{
		"message":        {target: schema.Message, wantInput: "message(acme.Order)"},
		"field":          {field: "items", target: schema.Field, wantInput: "[]int"},
		"repeated item":  {field: "items", target: schema.RepeatedItem, wantInput: "int"},
		"map key":        {field: "prices", target: schema.MapKey, wantInput: "string"},
		"map value":      {field: "prices", target: schema.MapValue, wantInput: "double"},
		"item of scalar": {field: "id", target: schema.RepeatedItem, wantError: true},
		"key of list":    {field: "items", target: schema.MapKey, wantError: true},
		"no field":       {target: schema.Field, wantError: true},
	}

	for key, c := range cases {
		var fd protoreflect.FieldDescriptor
		if c.field != "" {
			fd = fields.ByName(protoreflect.Name(c.field))
		}
		s, err := schema.Bindings(md, fd, c.target)
		if c.wantError {
			if err == nil {
				t.Errorf("case %s: wanted error", key)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %s: didn't want error, got: %v", key, err)
			continue
		}
		e, ok := s.Lookup(cove.InputKey)
		if !ok {
			t.Errorf("case %s: no input binding", key)
			continue
		}
		if e.Type.String() != c.wantInput {
			t.Errorf("case %s: wanted input %s, got %s", key, c.wantInput, e.Type)
		}
	}
}

func TestParseTarget(t *testing.T) {
	is := is.New(t)
	for _, want := range []schema.Target{schema.Message, schema.Field, schema.RepeatedItem, schema.MapKey, schema.MapValue} {
		got, err := schema.ParseTarget(want.String())
		is.NoErr(err)
		is.Equal(got, want)
	}
	got, err := schema.ParseTarget("")
	is.NoErr(err)
	is.Equal(got, schema.Field)

	_, err = schema.ParseTarget("elsewhere")
	is.True(err != nil)
}

func TestEnums(t *testing.T) {
	is := is.New(t)
	files := new(protoregistry.Files)
	is.NoErr(files.RegisterFile(orderFile(t)))

	r := schema.Enums(files)
	name, ok := r.EnumName("acme.Color", 1)
	is.True(ok)
	is.Equal(name, "GREEN")
}

func TestValues(t *testing.T) {
	is := is.New(t)
	md := orderFile(t).Messages().ByName("Order")
	fields := md.Fields()

	m := dynamicpb.NewMessage(md)
	m.Set(fields.ByName("id"), protoreflect.ValueOfString("o-1"))
	m.Set(fields.ByName("color"), protoreflect.ValueOfEnum(1))
	m.Set(fields.ByName("qty"), protoreflect.ValueOfUint32(3))

	items := m.Mutable(fields.ByName("items")).List()
	items.Append(protoreflect.ValueOfInt64(4))
	items.Append(protoreflect.ValueOfInt64(5))

	prices := m.Mutable(fields.ByName("prices")).Map()
	prices.Set(protoreflect.ValueOfString("b").MapKey(), protoreflect.ValueOfFloat64(2.5))
	prices.Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfFloat64(1))

	v := schema.Values(m)

	get := func(name string) value.Value {
		f, err := value.Field(v, name)
		is.NoErr(err)
		return f
	}
	is.Equal(get("id"), value.String("o-1"))
	is.Equal(get("color"), value.Enum("acme.Color", 1))
	is.Equal(get("qty"), value.Uint(3))
	is.Equal(get("items").String(), "[4, 5]")
	is.Equal(get("prices").String(), `{"a": 1.0, "b": 2.5}`)
	is.True(get("parent").IsNull())
	is.Equal(get("token"), value.Bytes(nil))
}
