package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"github.com/ardanlabs/aubio-extgen/parser"
	"github.com/ardanlabs/aubio-extgen/report"
)

const sourceBanner = "// this file is generated! do not modify\n#include \"aubio-types.h\"\n"

// Source produces the preprocessed lines of a header.
type Source interface {
	Lines(ctx context.Context, header string, useDouble bool) ([]string, error)
}

type Options struct {
	Header    string
	OutputDir string
	UseDouble bool
	Overwrite bool
	Skip      parser.SkipSet
}

// Scan preprocesses the header and builds its library. It also returns the
// normalized declarations the library was built from.
func Scan(ctx context.Context, src Source, header string, useDouble bool, skip parser.SkipSet) (*parser.Library, []string, error) {
	raw, err := src.Lines(ctx, header, useDouble)
	if err != nil {
		return nil, nil, err
	}

	decls := parser.Normalize(raw)
	lib := parser.BuildLibrary(parser.Discover(decls, skip), decls)

	return lib, decls, nil
}

// Generate writes one source file per library object plus the aggregate
// registration files into opts.OutputDir and returns the sorted list of C
// sources. When the directory already exists and opts.Overwrite is off the
// existing sources are returned untouched.
func Generate(ctx context.Context, opts Options, src Source, r Renderer, logger *log.Logger) ([]string, error) {
	info, err := os.Stat(opts.OutputDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("checking output directory: %w", err)

	case !info.IsDir():
		return nil, fmt.Errorf("output path %s is not a directory", opts.OutputDir)

	case !opts.Overwrite:
		sources, err := filepath.Glob(filepath.Join(opts.OutputDir, "*.c"))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", opts.OutputDir, err)
		}
		sort.Strings(sources)
		logger.Info().Str("dir", opts.OutputDir).Int("sources", len(sources)).Msg("output exists, skipping generation")
		return sources, nil
	}

	lib, decls, err := Scan(ctx, src, opts.Header, opts.UseDouble, opts.Skip)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("objects", lib.Len()).Int("declarations", len(decls)).Int("missing", len(report.Missing(lib, decls))).Msg("library built")

	var sources []string
	for _, o := range lib.Objects() {
		code, err := r.Render(o, opts.UseDouble)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(opts.OutputDir, "gen-"+o.ShortName+".c")
		if err := writeFile(path, sourceBanner+code, logger); err != nil {
			return nil, err
		}
		sources = append(sources, path)
	}

	names := lib.Names()

	path := filepath.Join(opts.OutputDir, "aubio-generated.c")
	if err := writeFile(path, generatedSource(names), logger); err != nil {
		return nil, err
	}
	sources = append(sources, path)

	path = filepath.Join(opts.OutputDir, "aubio-generated.h")
	if err := writeFile(path, generatedHeader(names, opts.UseDouble), logger); err != nil {
		return nil, err
	}

	sort.Strings(sources)
	return sources, nil
}

func writeFile(path, content string, logger *log.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, content); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	logger.Info().Msgf("wrote %s", path)
	return nil
}

func generatedSource(objects []string) string {
	var buf bytes.Buffer

	buf.WriteString(sourceBanner)
	fmt.Fprintf(&buf, "#include \"aubio-generated.h\"\n\n")

	fmt.Fprintf(&buf, "int generated_types_ready (void)\n{\n")
	if len(objects) == 0 {
		fmt.Fprintf(&buf, "  return 0;\n")
	} else {
		checks := make([]string, len(objects))
		for i, o := range objects {
			checks[i] = fmt.Sprintf("PyType_Ready (&Py_%sType) < 0", o)
		}
		fmt.Fprintf(&buf, "  return (%s);\n", strings.Join(checks, "\n      || "))
	}
	fmt.Fprintf(&buf, "}\n\n")

	fmt.Fprintf(&buf, "void add_generated_objects (PyObject *m)\n{\n")
	for _, o := range objects {
		fmt.Fprintf(&buf, "  Py_INCREF (&Py_%sType);\n", o)
		fmt.Fprintf(&buf, "  PyModule_AddObject (m, \"%s\", (PyObject *) &Py_%sType);\n", o, o)
	}
	fmt.Fprintf(&buf, "}\n")

	return buf.String()
}

func generatedHeader(objects []string, useDouble bool) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "// generated list of objects created with aubio-extgen\n\n")
	fmt.Fprintf(&buf, "#include <Python.h>\n")
	if useDouble {
		fmt.Fprintf(&buf, "\n#ifndef HAVE_AUBIO_DOUBLE\n#define HAVE_AUBIO_DOUBLE 1\n#endif\n")
	}

	fmt.Fprintf(&buf, "\n")
	for _, o := range objects {
		fmt.Fprintf(&buf, "extern PyTypeObject Py_%sType;\n", o)
	}

	fmt.Fprintf(&buf, "\nint generated_types_ready (void);\n")
	fmt.Fprintf(&buf, "void add_generated_objects (PyObject *m);\n")

	return buf.String()
}
