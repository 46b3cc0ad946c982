// Command genenum writes Go code that registers the enums of a protobuf
// descriptor set with the Cove enum registry.
//
//	//go:generate genenum -descriptors=order.pb -package=order -out=enums_gen.go
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/tools/imports"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

func main() {
	if err := run(os.Stdout, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(stdout io.Writer, args []string) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), args[0]+` usage:
	genenum -descriptors=set.pb -package=name [-out=file.go]`)
	}

	var (
		descriptors = flags.String("descriptors", "", "binary FileDescriptorSet")
		pkg         = flags.String("package", os.Getenv("GOPACKAGE"), "package of the generated file")
		outfile     = flags.String("out", "", "output file; standard output if empty")
		v           = flags.Bool("v", false, "produce verbose output")
	)
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	if *descriptors == "" {
		return errors.New("missing descriptors")
	}
	if *pkg == "" {
		return errors.New("missing package")
	}

	if *v {
		log.Println("genenum")
		if os.Getenv("GOPACKAGE") != "" {
			log.Printf("go generate called from %s:%s\n", os.Getenv("GOFILE"), os.Getenv("GOLINE"))
		}
	}

	b, err := os.ReadFile(*descriptors)
	if err != nil {
		return errors.Wrap(err, "reading descriptors")
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &set); err != nil {
		return errors.Wrapf(err, "decoding %s", *descriptors)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return errors.Wrapf(err, "descriptor set %s", *descriptors)
	}

	def := collect(files)
	def.Package = *pkg
	def.Source = filepath.Base(*descriptors)

	if len(def.Enums) == 0 {
		if *v {
			log.Println("No enums found; quitting")
		}
		return nil
	}

	src, err := render(def)
	if err != nil {
		return errors.Wrap(err, "rendering")
	}
	out, err := imports.Process(*outfile, []byte(src), nil)
	if err != nil {
		return errors.Wrapf(err, "formatting generated code:\n%s", src)
	}

	var w io.Writer = stdout
	if *outfile != "" {
		f, err := os.Create(*outfile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	if *v {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "\tTotal enums: %d\n", len(def.Enums))
		fmt.Fprintf(os.Stderr, "\tOutput size: %s\n", humanize.Bytes(uint64(len(out))))
	}
	return nil
}
