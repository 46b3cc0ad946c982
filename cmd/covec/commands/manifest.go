package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/engine"
	"github.com/ezachrisen/cove/enums"
	"github.com/ezachrisen/cove/schema"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"gopkg.in/yaml.v3"
)

// Manifest is a YAML constraint file:
//
//	descriptors: order.pb
//	enums:
//	  - tag: acme.Size
//	    values: {0: SMALL, 1: LARGE}
//	rules:
//	  - id: order
//	    proto: acme.Order
//	    rules:
//	      - id: email
//	        expr: input.email.isEmail()
//	        message: "{input.email} is not an email address"
type Manifest struct {
	// Descriptors is a binary FileDescriptorSet, relative to the manifest.
	Descriptors string    `yaml:"descriptors"`
	Enums       []EnumDef `yaml:"enums" validate:"dive"`
	Rules       []RuleDef `yaml:"rules" validate:"required,min=1,dive"`

	dir string
}

// EnumDef declares an enum type without descriptors.
type EnumDef struct {
	Tag    string           `yaml:"tag" validate:"required"`
	Values map[int32]string `yaml:"values" validate:"required,min=1,dive,required"`
}

// RuleDef is a rule and its children.
//
// A rule's inputs come either from a message in the descriptors (Proto,
// with Field and Target selecting the attachment point) or from Schema,
// a map of names to type strings such as "[]int" or "enum(acme.Size)".
type RuleDef struct {
	ID      string            `yaml:"id" validate:"required,excludesall=/"`
	Expr    string            `yaml:"expr"`
	Message string            `yaml:"message"`
	Proto   string            `yaml:"proto"`
	Field   string            `yaml:"field" validate:"excluded_without=Proto"`
	Target  string            `yaml:"target" validate:"omitempty,oneof=message field repeated_item map_key map_value"`
	This    any               `yaml:"this"`
	Schema  map[string]string `yaml:"schema" validate:"excluded_with=Proto,dive,required"`
	Rules   []RuleDef         `yaml:"rules" validate:"dive"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening manifest")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Errorf("manifest %s is empty", path)
		}
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if err := validator.New().Struct(&m); err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// project is a manifest resolved to engine rules.
type project struct {
	rules []*engine.Rule
	enums *enums.Registry
	files *protoregistry.Files
	types *schema.Types
}

func loadProject(path string) (*project, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.build()
}

func (m *Manifest) build() (*project, error) {
	p := &project{types: schema.NewTypes()}

	if m.Descriptors != "" {
		path := m.Descriptors
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		files, err := loadDescriptors(path)
		if err != nil {
			return nil, err
		}
		p.files = files
		p.enums = schema.Enums(files)
	} else {
		p.enums = enums.New()
	}
	for _, e := range m.Enums {
		p.enums.Register(enums.FromNames(e.Tag, e.Values))
	}
	if err := p.enums.Validate(); err != nil {
		return nil, err
	}

	for _, rd := range m.Rules {
		r, err := p.rule(rd)
		if err != nil {
			return nil, err
		}
		p.rules = append(p.rules, r)
	}
	log.Debug().Int("rules", len(p.rules)).Strs("enums", p.enums.Tags()).Msg("loaded manifest")
	return p, nil
}

func loadDescriptors(path string) (*protoregistry.Files, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading descriptors")
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &set); err != nil {
		return nil, errors.Wrapf(err, "decoding descriptor set %s", path)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, errors.Wrapf(err, "descriptor set %s", path)
	}
	return files, nil
}

func (p *project) rule(rd RuleDef) (*engine.Rule, error) {
	r := engine.NewRule(rd.ID, rd.Expr)
	r.Message = rd.Message

	target, err := schema.ParseTarget(rd.Target)
	if err != nil {
		return nil, errors.Wrapf(err, "rule %s", rd.ID)
	}
	if rd.Proto != "" && rd.Field == "" && rd.Target == "" {
		target = schema.Message
	}
	r.Target = target

	if rd.This != nil {
		if r.This, err = infer(rd.This); err != nil {
			return nil, errors.Wrapf(err, "rule %s: this", rd.ID)
		}
	}

	switch {
	case rd.Proto != "":
		r.Schema, err = p.bindings(rd, target)
	case len(rd.Schema) > 0:
		r.Schema, err = p.schema(rd.ID, rd.Schema)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "rule %s", rd.ID)
	}

	for _, cd := range rd.Rules {
		c, err := p.rule(cd)
		if err != nil {
			return nil, err
		}
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (p *project) message(name string) (protoreflect.MessageDescriptor, error) {
	if p.files == nil {
		return nil, errors.Errorf("message %s: the manifest has no descriptors", name)
	}
	d, err := p.files.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, errors.Wrapf(err, "message %s", name)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Errorf("%s is not a message", name)
	}
	return md, nil
}

func (p *project) bindings(rd RuleDef, target schema.Target) (*cove.Schema, error) {
	md, err := p.message(rd.Proto)
	if err != nil {
		return nil, err
	}
	var fd protoreflect.FieldDescriptor
	if rd.Field != "" {
		if fd = md.Fields().ByName(protoreflect.Name(rd.Field)); fd == nil {
			return nil, errors.Errorf("message %s has no field %s", rd.Proto, rd.Field)
		}
	}
	return p.types.Bindings(md, fd, target)
}

// schema builds a schema from name to type strings, resolving message
// types against the descriptors.
func (p *project) schema(id string, elems map[string]string) (*cove.Schema, error) {
	names := make([]string, 0, len(elems))
	for n := range elems {
		names = append(names, n)
	}
	sort.Strings(names)

	s := &cove.Schema{ID: id}
	for _, n := range names {
		t, err := cove.ParseType(elems[n])
		if err != nil {
			return nil, errors.Wrapf(err, "schema element %s", n)
		}
		if t, err = p.resolve(t); err != nil {
			return nil, errors.Wrapf(err, "schema element %s", n)
		}
		s.Elements = append(s.Elements, cove.DataElement{Name: n, Type: t})
	}
	return s, nil
}

func (p *project) resolve(t cove.Type) (cove.Type, error) {
	switch x := t.(type) {
	case *cove.Message:
		md, err := p.message(x.Name)
		if err != nil {
			return nil, err
		}
		return p.types.Message(md), nil
	case cove.List:
		v, err := p.resolve(x.ValueType)
		return cove.List{ValueType: v}, err
	case cove.Map:
		v, err := p.resolve(x.ValueType)
		return cove.Map{KeyType: x.KeyType, ValueType: v}, err
	}
	return t, nil
}

// elementTypes returns the declared type of every runtime input of the
// rules. The first declaration of a name wins.
func (p *project) elementTypes() map[string]cove.Type {
	out := map[string]cove.Type{}
	for _, r := range p.rules {
		_ = engine.ApplyToRule(r, func(r *engine.Rule) error {
			if r.Schema == nil {
				return nil
			}
			for _, e := range r.Schema.Elements {
				if _, ok := out[e.Name]; !ok {
					out[e.Name] = e.Type
				}
			}
			return nil
		})
	}
	return out
}

func (p *project) engine() (*engine.Engine, error) {
	return engine.New(
		engine.WithEnums(p.enums),
		engine.WithLogger(log.Logger),
		engine.WithCompilerOptions(compiler.WithLogger(log.Logger)),
	)
}

func (p *project) compile(ctx context.Context) (*engine.Engine, error) {
	e, err := p.engine()
	if err != nil {
		return nil, err
	}
	if err := e.Compile(ctx, p.rules...); err != nil {
		return nil, err
	}
	return e, nil
}
