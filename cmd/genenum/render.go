package main

import (
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/ezachrisen/cove/enums"
	"github.com/gobuffalo/plush/v4"
	"github.com/markbates/inflect"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// definition is the data the template renders. Every string is already
// valid Go, so it is typed template.HTML to keep plush from escaping it.
type definition struct {
	Package string
	Source  string
	Enums   []enum
}

type enum struct {
	// Const names the tag constant, e.g. OrderStatusTag.
	Const template.HTML
	// Tag is the quoted full name, e.g. "acme.Order.Status".
	Tag    template.HTML
	Values []enumValue
}

type enumValue struct {
	Const  template.HTML
	Number template.HTML
	Name   template.HTML
}

// collect lists the enums of files ordered by full name. An alias
// number keeps its first declared name.
func collect(files *protoregistry.Files) definition {
	var def definition
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		for _, ed := range enums.Descriptors(fd) {
			def.Enums = append(def.Enums, describe(fd.Package(), ed))
		}
		return true
	})
	sort.Slice(def.Enums, func(i, j int) bool { return def.Enums[i].Tag < def.Enums[j].Tag })
	return def
}

func describe(pkg protoreflect.FullName, ed protoreflect.EnumDescriptor) enum {
	local := strings.TrimPrefix(string(ed.FullName()), string(pkg)+".")
	typeName := inflect.Camelize(strings.ReplaceAll(local, ".", "_"))
	prefix := strings.ToLower(inflect.Underscore(string(ed.Name()))) + "_"

	e := enum{
		Const: template.HTML(typeName + "Tag"),
		Tag:   template.HTML(strconv.Quote(string(ed.FullName()))),
	}
	seen := map[protoreflect.EnumNumber]bool{}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		vd := values.Get(i)
		if seen[vd.Number()] {
			continue
		}
		seen[vd.Number()] = true
		name := strings.TrimPrefix(strings.ToLower(string(vd.Name())), prefix)
		e.Values = append(e.Values, enumValue{
			Const:  template.HTML(typeName + inflect.Camelize(name)),
			Number: template.HTML(strconv.Itoa(int(vd.Number()))),
			Name:   template.HTML(strconv.Quote(string(vd.Name()))),
		})
	}
	return e
}

// render renders the template using the definition.
func render(def definition) (string, error) {
	ctx := plush.NewContext()
	ctx.Set("pkg", template.HTML(def.Package))
	ctx.Set("source", template.HTML(def.Source))
	ctx.Set("enums", def.Enums)
	return plush.Render(src, ctx)
}

const src = `// Code generated by genenum from <%= source %>. DO NOT EDIT.

package <%= pkg %>

import "github.com/ezachrisen/cove/enums"

const (
<%= for (i, e) in enums { %>	<%= e.Const %> = <%= e.Tag %>
<%= for (j, v) in e.Values { %>	<%= v.Const %> int32 = <%= v.Number %>
<% } %>
<% } %>)

func init() {
<%= for (i, e) in enums { %>	enums.Register(enums.FromNames(<%= e.Const %>, map[int32]string{
<%= for (j, v) in e.Values { %>		<%= v.Number %>: <%= v.Name %>,
<% } %>	}))
<% } %>}
`
