package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"

	"github.com/ardanlabs/aubio-extgen/logutil"
	"github.com/ardanlabs/aubio-extgen/parser"
)

var header = []string{
	"# 1 \"aubio.h\"",
	"typedef unsigned int uint_t;",
	"typedef float smpl_t;",
	"typedef struct _aubio_foo_t aubio_foo_t;",
	"aubio_foo_t *new_aubio_foo (uint_t n,",
	"smpl_t gain);",
	"void del_aubio_foo (aubio_foo_t *o);",
	"void aubio_foo_do (aubio_foo_t *o, fvec_t *in, fvec_t *out);",
	"uint_t aubio_foo_get_n (aubio_foo_t *o);",
	"uint_t aubio_foo_set_gain (aubio_foo_t *o, smpl_t gain);",
	"void aubio_foo_set_name (aubio_foo_t *o, weird_t w);",
	"",
	"typedef struct _aubio_bar_t {",
	"uint_t x;",
	"} aubio_bar_t;",
	"aubio_bar_t *new_aubio_bar (void);",
	"void aubio_bar_rdo (aubio_bar_t *o, fvec_t *out);",
	"void del_aubio_bar (aubio_bar_t *o);",
	"smpl_t aubio_bar_level (aubio_bar_t *o);",
}

type fakeSource struct {
	lines []string
	err   error
	calls int
}

func (f *fakeSource) Lines(ctx context.Context, header string, useDouble bool) ([]string, error) {
	f.calls++
	return f.lines, f.err
}

type failRenderer struct{}

func (failRenderer) Render(obj *parser.Object, useDouble bool) (string, error) {
	return "", errors.New("boom")
}

func scan(t *testing.T, lines []string) *parser.Library {
	t.Helper()

	lib, _, err := Scan(t.Context(), &fakeSource{lines: lines}, "aubio.h", false, parser.SkipSet{})
	require.NoError(t, err)
	return lib
}

func object(t *testing.T, lib *parser.Library, name string) *parser.Object {
	t.Helper()

	o, ok := lib.Get(name)
	require.True(t, ok, "object %s", name)
	return o
}

func TestScan(t *testing.T) {
	lib := scan(t, header)
	assert.Equal(t, []string{"foo", "bar"}, lib.Names())

	lib, _, err := Scan(t.Context(), &fakeSource{lines: header}, "aubio.h", false, parser.NewSkipSet("bar"))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, lib.Names())
}

func TestScanSourceError(t *testing.T) {
	_, _, err := Scan(t.Context(), &fakeSource{err: os.ErrNotExist}, "aubio.h", false, parser.SkipSet{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gen")
	src := &fakeSource{lines: header}

	opts := Options{
		Header:    "aubio.h",
		OutputDir: dir,
		UseDouble: true,
		Overwrite: true,
	}

	sources, err := Generate(t.Context(), opts, src, PyObject{}, logutil.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	assert.Equal(t, []string{
		filepath.Join(dir, "aubio-generated.c"),
		filepath.Join(dir, "gen-bar.c"),
		filepath.Join(dir, "gen-foo.c"),
	}, sources)

	for _, name := range []string{"aubio-generated.c", "aubio-generated.h", "gen-bar.c"} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		golden.Assert(t, string(content), name+".golden")
	}

	foo, err := os.ReadFile(filepath.Join(dir, "gen-foo.c"))
	require.NoError(t, err)
	assert.Contains(t, string(foo), sourceBanner)
	assert.Contains(t, string(foo), `"|Id"`)
}

func TestGenerateKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gen-old.c"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0644))

	src := &fakeSource{lines: header}
	opts := Options{Header: "aubio.h", OutputDir: dir}

	sources, err := Generate(t.Context(), opts, src, PyObject{}, logutil.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "gen-old.c")}, sources)
	assert.Zero(t, src.calls)
}

func TestGenerateOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gen-foo.c"), []byte("old"), 0644))

	opts := Options{Header: "aubio.h", OutputDir: dir, Overwrite: true}

	sources, err := Generate(t.Context(), opts, &fakeSource{lines: header}, PyObject{}, logutil.Discard())
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	foo, err := os.ReadFile(filepath.Join(dir, "gen-foo.c"))
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(foo))
}

func TestGenerateErrors(t *testing.T) {
	t.Run("not a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := Generate(t.Context(), Options{OutputDir: path, Overwrite: true}, &fakeSource{lines: header}, PyObject{}, logutil.Discard())
		assert.ErrorContains(t, err, "not a directory")
	})

	t.Run("source", func(t *testing.T) {
		opts := Options{OutputDir: t.TempDir(), Overwrite: true}

		_, err := Generate(t.Context(), opts, &fakeSource{err: context.Canceled}, PyObject{}, logutil.Discard())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("renderer", func(t *testing.T) {
		opts := Options{OutputDir: t.TempDir(), Overwrite: true}

		_, err := Generate(t.Context(), opts, &fakeSource{lines: header}, failRenderer{}, logutil.Discard())
		assert.ErrorContains(t, err, "boom")
	})
}

func TestRenderFoo(t *testing.T) {
	foo := object(t, scan(t, header), "foo")

	code, err := PyObject{}.Render(foo, false)
	require.NoError(t, err)

	assert.Contains(t, code, "  aubio_foo_t * o;\n} Py_foo;")
	assert.Contains(t, code, `static char *kwlist[] = { "n", "gain", NULL };`)
	assert.Contains(t, code, `"|If", kwlist, &n, &gain`)
	assert.Contains(t, code, "self->o = new_aubio_foo (n, gain);")
	assert.Contains(t, code, "del_aubio_foo (self->o);")

	assert.Contains(t, code, "Py_foo_do (Py_foo * self, PyObject * args, PyObject * kwds)")
	assert.Contains(t, code, `PyArg_ParseTuple (args, "OO", &py_in, &py_out)`)
	assert.Contains(t, code, "aubio_foo_do (self->o, &in, &out);")
	assert.Contains(t, code, ".tp_call = (ternaryfunc) Py_foo_do,")
	assert.Contains(t, code, ".tp_new = Py_foo_new,")

	assert.Contains(t, code, "Py_foo_get_n (Py_foo * self, PyObject * unused)")
	assert.Contains(t, code, "return PyLong_FromUnsignedLong (result);")
	assert.Contains(t, code, `{"get_n", (PyCFunction) Py_foo_get_n, METH_NOARGS, "get_n"},`)

	assert.Contains(t, code, `PyArg_ParseTuple (args, "f", &gain)`)
	assert.Contains(t, code, `PyErr_Format (PyExc_ValueError, "error running aubio_foo_set_gain");`)
	assert.Contains(t, code, `{"set_gain", (PyCFunction) Py_foo_set_gain, METH_VARARGS, "set_gain"},`)

	assert.Contains(t, code, "/* not wrapped:\n *   void aubio_foo_set_name (aubio_foo_t * o, weird_t w);\n */")
	assert.NotContains(t, code, "Py_foo_set_name")
}

func TestRenderDouble(t *testing.T) {
	foo := object(t, scan(t, header), "foo")

	code, err := PyObject{}.Render(foo, true)
	require.NoError(t, err)

	assert.Contains(t, code, `"|Id", kwlist`)
	assert.Contains(t, code, `PyArg_ParseTuple (args, "d", &gain)`)
}

func TestRenderWithoutConstructor(t *testing.T) {
	lib := scan(t, []string{
		"typedef struct _aubio_baz_t aubio_baz_t;",
		"uint_t aubio_baz_get_size (aubio_baz_t *o);",
	})

	code, err := PyObject{}.Render(object(t, lib, "baz"), false)
	require.NoError(t, err)

	assert.NotContains(t, code, "Py_baz_new")
	assert.NotContains(t, code, ".tp_new")
	assert.NotContains(t, code, ".tp_call")
	assert.Contains(t, code, "Py_TYPE (self)->tp_free ((PyObject *) self);")
	assert.NotContains(t, code, "del_aubio_baz")
}

func TestRenderUnsupportedConstructor(t *testing.T) {
	lib := scan(t, []string{
		"typedef struct _aubio_baz_t aubio_baz_t;",
		"aubio_baz_t *new_aubio_baz (fvec_t *input);",
	})

	_, err := PyObject{}.Render(object(t, lib, "baz"), false)
	assert.ErrorIs(t, err, ErrUnsupportedConstructor)
	assert.ErrorContains(t, err, "new_aubio_baz")
}

func TestRenderStringParam(t *testing.T) {
	lib := scan(t, []string{
		"typedef struct _aubio_baz_t aubio_baz_t;",
		"aubio_baz_t *new_aubio_baz (const char_t *method, uint_t size);",
	})

	code, err := PyObject{}.Render(object(t, lib, "baz"), false)
	require.NoError(t, err)

	assert.Contains(t, code, `const char_t * method = "default";`)
	assert.Contains(t, code, `"|sI", kwlist, &method, &size`)
}

func TestRenderDoublePointers(t *testing.T) {
	lib := scan(t, []string{
		"typedef struct _aubio_foo_t aubio_foo_t;",
		"uint_t aubio_foo_set_names (aubio_foo_t *o, char_t **names);",
		"void aubio_foo_do_many (aubio_foo_t *o, fvec_t **in);",
		"uint_t aubio_foo_get_n (aubio_foo_t **o);",
	})

	code, err := PyObject{}.Render(object(t, lib, "foo"), false)
	require.NoError(t, err)

	assert.NotContains(t, code, "Py_foo_set_names")
	assert.NotContains(t, code, "Py_foo_do_many")
	assert.NotContains(t, code, "Py_foo_get_n")
	assert.NotContains(t, code, "const char_t * names;")
	assert.Contains(t, code, " *   uint_t aubio_foo_set_names (aubio_foo_t * o, char_t * * names);\n")
	assert.Contains(t, code, " *   void aubio_foo_do_many (aubio_foo_t * o, fvec_t * * in);\n")
	assert.Contains(t, code, " *   uint_t aubio_foo_get_n (aubio_foo_t * * o);\n")
}

func TestVectorFor(t *testing.T) {
	_, ok := vectorFor(parser.CType{Name: "fvec_t", IsPointer: true, PointerDepth: 1})
	assert.True(t, ok)

	_, ok = vectorFor(parser.CType{Name: "fvec_t", IsPointer: true, PointerDepth: 2})
	assert.False(t, ok)

	_, ok = vectorFor(parser.CType{Name: "fvec_t"})
	assert.False(t, ok)
}

func TestScalarFor(t *testing.T) {
	tests := []struct {
		name   string
		ct     parser.CType
		double bool
		format string
		ok     bool
	}{
		{"uint", parser.CType{Name: "uint_t"}, false, "I", true},
		{"sint", parser.CType{Name: "sint_t"}, false, "i", true},
		{"smpl float", parser.CType{Name: "smpl_t"}, false, "f", true},
		{"smpl double", parser.CType{Name: "smpl_t"}, true, "d", true},
		{"lsmp", parser.CType{Name: "lsmp_t"}, false, "d", true},
		{"string", parser.CType{Name: "char_t", IsPointer: true, PointerDepth: 1, IsConst: true}, false, "s", true},
		{"vector", parser.CType{Name: "fvec_t", IsPointer: true, PointerDepth: 1}, false, "", false},
		{"string array", parser.CType{Name: "char_t", IsPointer: true, PointerDepth: 2}, false, "", false},
		{"unknown", parser.CType{Name: "weird_t"}, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := scalarFor(tt.ct, tt.double)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, s.format)
		})
	}
}
