package generator

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/ardanlabs/aubio-extgen/parser"
)

var ErrUnsupportedConstructor = errors.New("constructor has parameters that cannot be wrapped")

// Renderer turns one library object into C source.
type Renderer interface {
	Render(obj *parser.Object, useDouble bool) (string, error)
}

// PyObject renders each library object as a Python extension type.
type PyObject struct{}

func (PyObject) Render(obj *parser.Object, useDouble bool) (string, error) {
	g := objectGen{
		obj:       obj,
		root:      strings.TrimSuffix(obj.LongName, "_t"),
		useDouble: useDouble,
	}
	return g.generate()
}

type objectGen struct {
	obj       *parser.Object
	root      string
	useDouble bool

	hasNew  bool
	hasCall bool
	methods []methodDef
	skipped []string
}

type methodDef struct {
	Name  string
	CName string
	Flags string
}

func (g *objectGen) generate() (string, error) {
	var buf bytes.Buffer
	name := g.obj.ShortName

	fmt.Fprintf(&buf, "\ntypedef struct {\n")
	fmt.Fprintf(&buf, "  PyObject_HEAD\n")
	fmt.Fprintf(&buf, "  %s * o;\n", g.obj.LongName)
	fmt.Fprintf(&buf, "} Py_%s;\n\n", name)
	fmt.Fprintf(&buf, "static char Py_%s_doc[] = \"%s object wrapping %s\";\n\n", name, name, g.obj.LongName)

	if err := g.generateNew(&buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", name, err)
	}
	g.generateDel(&buf)
	g.generateProcessing(&buf)
	g.generateAccessors(&buf)
	g.generateSkipped(&buf)

	if err := g.generateType(&buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", name, err)
	}

	return buf.String(), nil
}

func (g *objectGen) generateNew(buf *bytes.Buffer) error {
	fn, ok := g.find(parser.RoleNew, "new_"+g.root)
	if !ok {
		return nil
	}

	var decls, kwlist, format, refs, callArgs []string
	for _, p := range fn.Params {
		s, ok := scalarFor(p.Type, g.useDouble)
		if !ok || p.Name == "" {
			return fmt.Errorf("%w: %s", ErrUnsupportedConstructor, fn.Name)
		}
		decls = append(decls, fmt.Sprintf("  %s %s = %s;", s.decl, p.Name, s.zero))
		kwlist = append(kwlist, fmt.Sprintf("%q", p.Name))
		format = append(format, s.format)
		refs = append(refs, "&"+p.Name)
		callArgs = append(callArgs, p.Name)
	}

	name := g.obj.ShortName
	fmt.Fprintf(buf, "static PyObject *\n")
	fmt.Fprintf(buf, "Py_%s_new (PyTypeObject * pytype, PyObject * args, PyObject * kwds)\n{\n", name)
	fmt.Fprintf(buf, "  Py_%s * self;\n", name)
	for _, d := range decls {
		fmt.Fprintf(buf, "%s\n", d)
	}

	if len(fn.Params) > 0 {
		fmt.Fprintf(buf, "  static char *kwlist[] = { %s, NULL };\n\n", strings.Join(kwlist, ", "))
		fmt.Fprintf(buf, "  if (!PyArg_ParseTupleAndKeywords (args, kwds, \"|%s\", kwlist, %s)) {\n",
			strings.Join(format, ""), strings.Join(refs, ", "))
		fmt.Fprintf(buf, "    return NULL;\n  }\n")
	}

	fmt.Fprintf(buf, "\n  self = (Py_%s *) pytype->tp_alloc (pytype, 0);\n", name)
	fmt.Fprintf(buf, "  if (self == NULL) {\n    return NULL;\n  }\n\n")
	fmt.Fprintf(buf, "  self->o = %s (%s);\n", fn.Name, strings.Join(callArgs, ", "))
	fmt.Fprintf(buf, "  if (self->o == NULL) {\n")
	fmt.Fprintf(buf, "    PyErr_Format (PyExc_RuntimeError, \"failed creating %s\");\n", name)
	fmt.Fprintf(buf, "    Py_DECREF (self);\n")
	fmt.Fprintf(buf, "    return NULL;\n  }\n\n")
	fmt.Fprintf(buf, "  return (PyObject *) self;\n}\n\n")

	g.hasNew = true
	return nil
}

func (g *objectGen) generateDel(buf *bytes.Buffer) {
	name := g.obj.ShortName

	fmt.Fprintf(buf, "static void\n")
	fmt.Fprintf(buf, "Py_%s_del (Py_%s * self)\n{\n", name, name)
	if fn, ok := g.find(parser.RoleDel, "del_"+g.root); ok {
		fmt.Fprintf(buf, "  if (self->o) {\n")
		fmt.Fprintf(buf, "    %s (self->o);\n", fn.Name)
		fmt.Fprintf(buf, "  }\n")
	}
	fmt.Fprintf(buf, "  Py_TYPE (self)->tp_free ((PyObject *) self);\n}\n\n")
}

func (g *objectGen) generateProcessing(buf *bytes.Buffer) {
	for _, role := range []parser.Role{parser.RoleDo, parser.RoleRDo} {
		for _, decl := range g.obj.Bucket(role) {
			fn, ok := g.method(decl)
			if !ok {
				continue
			}

			if role == parser.RoleDo && fn.Name == g.root+"_do" {
				if !g.hasCall && g.generateWrapper(buf, fn, "_do", true) {
					g.hasCall = true
				} else {
					g.skipped = append(g.skipped, decl)
				}
				continue
			}

			g.addMethod(buf, fn, decl)
		}
	}
}

func (g *objectGen) generateAccessors(buf *bytes.Buffer) {
	for _, role := range []parser.Role{parser.RoleGet, parser.RoleSet} {
		for _, decl := range g.obj.Bucket(role) {
			fn, ok := g.method(decl)
			if !ok {
				continue
			}
			g.addMethod(buf, fn, decl)
		}
	}
}

func (g *objectGen) addMethod(buf *bytes.Buffer, fn parser.Function, decl string) {
	pyName := strings.TrimPrefix(fn.Name, g.root+"_")
	suffix := "_" + pyName

	if !g.generateWrapper(buf, fn, suffix, false) {
		g.skipped = append(g.skipped, decl)
		return
	}

	flags := "METH_VARARGS"
	if len(fn.Params) == 1 {
		flags = "METH_NOARGS"
	}

	g.methods = append(g.methods, methodDef{
		Name:  pyName,
		CName: "Py_" + g.obj.ShortName + suffix,
		Flags: flags,
	})
}

// method parses decl and checks that it is called on this object. Anything
// else ends up in the skipped list.
func (g *objectGen) method(decl string) (parser.Function, bool) {
	fn, err := parser.ParsePrototype(decl)
	if err != nil || !strings.HasPrefix(fn.Name, g.root+"_") || len(fn.Params) == 0 ||
		fn.Params[0].Type.Name != g.obj.LongName || fn.Params[0].Type.PointerDepth != 1 || fn.IsVariadic {
		g.skipped = append(g.skipped, decl)
		return parser.Function{}, false
	}
	return fn, true
}

// generateWrapper writes a C function forwarding Python arguments to fn.
// It returns false, writing nothing, when a parameter or the return type
// has no Python mapping.
func (g *objectGen) generateWrapper(buf *bytes.Buffer, fn parser.Function, suffix string, call bool) bool {
	var ret scalar
	voidReturn := fn.ReturnType.Name == "void" && !fn.ReturnType.IsPointer
	if !voidReturn {
		var ok bool
		if ret, ok = scalarFor(fn.ReturnType, g.useDouble); !ok {
			return false
		}
	}

	var locals, format, refs, conversions, callArgs []string
	callArgs = append(callArgs, "self->o")

	for _, p := range fn.Params[1:] {
		if p.Name == "" {
			return false
		}

		if s, ok := scalarFor(p.Type, g.useDouble); ok {
			locals = append(locals, fmt.Sprintf("  %s %s;", s.decl, p.Name))
			format = append(format, s.format)
			refs = append(refs, "&"+p.Name)
			callArgs = append(callArgs, p.Name)
			continue
		}

		v, ok := vectorFor(p.Type)
		if !ok {
			return false
		}
		locals = append(locals,
			fmt.Sprintf("  PyObject * py_%s;", p.Name),
			fmt.Sprintf("  %s %s;", v.ctype, p.Name))
		format = append(format, "O")
		refs = append(refs, "&py_"+p.Name)
		conversions = append(conversions, fmt.Sprintf("  if (!%s (py_%s, &%s)) {\n    return NULL;\n  }\n", v.convert, p.Name, p.Name))
		callArgs = append(callArgs, "&"+p.Name)
	}

	name := g.obj.ShortName
	args := "PyObject * args"
	switch {
	case call:
		args = "PyObject * args, PyObject * kwds"
	case len(fn.Params) == 1:
		args = "PyObject * unused"
	}

	fmt.Fprintf(buf, "static PyObject *\n")
	fmt.Fprintf(buf, "Py_%s%s (Py_%s * self, %s)\n{\n", name, suffix, name, args)
	for _, l := range locals {
		fmt.Fprintf(buf, "%s\n", l)
	}
	if !voidReturn {
		fmt.Fprintf(buf, "  %s result;\n", ret.decl)
	}
	if len(locals) > 0 || !voidReturn {
		fmt.Fprintf(buf, "\n")
	}

	if len(fn.Params) > 1 {
		fmt.Fprintf(buf, "  if (!PyArg_ParseTuple (args, \"%s\", %s)) {\n", strings.Join(format, ""), strings.Join(refs, ", "))
		fmt.Fprintf(buf, "    return NULL;\n  }\n")
	}
	for _, c := range conversions {
		fmt.Fprintf(buf, "%s", c)
	}
	if len(fn.Params) > 1 {
		fmt.Fprintf(buf, "\n")
	}

	invoke := fmt.Sprintf("%s (%s)", fn.Name, strings.Join(callArgs, ", "))
	switch {
	case voidReturn:
		fmt.Fprintf(buf, "  %s;\n\n", invoke)
		fmt.Fprintf(buf, "  Py_RETURN_NONE;\n")
	case strings.Contains(fn.Name, "_set_") && ret.decl == "uint_t":
		fmt.Fprintf(buf, "  result = %s;\n", invoke)
		fmt.Fprintf(buf, "  if (result != 0) {\n")
		fmt.Fprintf(buf, "    PyErr_Format (PyExc_ValueError, \"error running %s\");\n", fn.Name)
		fmt.Fprintf(buf, "    return NULL;\n  }\n\n")
		fmt.Fprintf(buf, "  Py_RETURN_NONE;\n")
	default:
		fmt.Fprintf(buf, "  result = %s;\n\n", invoke)
		fmt.Fprintf(buf, "  return %s (result);\n", ret.toPy)
	}
	fmt.Fprintf(buf, "}\n\n")

	return true
}

func (g *objectGen) generateSkipped(buf *bytes.Buffer) {
	other := g.obj.Bucket(parser.RoleOther)
	if len(other) == 0 && len(g.skipped) == 0 {
		return
	}

	fmt.Fprintf(buf, "/* not wrapped:\n")
	for _, d := range other {
		fmt.Fprintf(buf, " *   %s\n", d)
	}
	for _, d := range g.skipped {
		fmt.Fprintf(buf, " *   %s\n", d)
	}
	fmt.Fprintf(buf, " */\n\n")
}

var typeTmpl = template.Must(template.New("type").Parse(`static PyMethodDef Py_{{.Name}}_methods[] = {
{{- range .Methods}}
  {"{{.Name}}", (PyCFunction) {{.CName}}, {{.Flags}}, "{{.Name}}"},
{{- end}}
  {NULL} /* sentinel */
};

PyTypeObject Py_{{.Name}}Type = {
  PyVarObject_HEAD_INIT (NULL, 0)
  .tp_name = "aubio.{{.Name}}",
  .tp_basicsize = sizeof (Py_{{.Name}}),
  .tp_dealloc = (destructor) Py_{{.Name}}_del,
{{- if .HasCall}}
  .tp_call = (ternaryfunc) Py_{{.Name}}_do,
{{- end}}
  .tp_flags = Py_TPFLAGS_DEFAULT,
  .tp_doc = Py_{{.Name}}_doc,
  .tp_methods = Py_{{.Name}}_methods,
{{- if .HasNew}}
  .tp_new = Py_{{.Name}}_new,
{{- end}}
};
`))

func (g *objectGen) generateType(buf *bytes.Buffer) error {
	return typeTmpl.Execute(buf, map[string]any{
		"Name":    g.obj.ShortName,
		"Methods": g.methods,
		"HasCall": g.hasCall,
		"HasNew":  g.hasNew,
	})
}

// find returns the first declaration of role named name.
func (g *objectGen) find(role parser.Role, name string) (parser.Function, bool) {
	for _, decl := range g.obj.Bucket(role) {
		fn, err := parser.ParsePrototype(decl)
		if err != nil {
			continue
		}
		if fn.Name == name {
			return fn, true
		}
	}
	return parser.Function{}, false
}

type scalar struct {
	decl   string
	format string
	zero   string
	toPy   string
}

func scalarFor(ct parser.CType, useDouble bool) (scalar, bool) {
	if ct.IsPointer {
		if ct.PointerDepth == 1 && (ct.Name == "char_t" || ct.Name == "char") {
			return scalar{decl: "const char_t *", format: "s", zero: `"default"`, toPy: "PyUnicode_FromString"}, true
		}
		return scalar{}, false
	}

	switch ct.Name {
	case "uint_t":
		return scalar{decl: "uint_t", format: "I", zero: "0", toPy: "PyLong_FromUnsignedLong"}, true
	case "sint_t":
		return scalar{decl: "sint_t", format: "i", zero: "0", toPy: "PyLong_FromLong"}, true
	case "smpl_t":
		format := "f"
		if useDouble {
			format = "d"
		}
		return scalar{decl: "smpl_t", format: format, zero: "0.", toPy: "PyFloat_FromDouble"}, true
	case "lsmp_t":
		return scalar{decl: "lsmp_t", format: "d", zero: "0.", toPy: "PyFloat_FromDouble"}, true
	}

	return scalar{}, false
}

type vector struct {
	ctype   string
	convert string
}

func vectorFor(ct parser.CType) (vector, bool) {
	if ct.PointerDepth != 1 {
		return vector{}, false
	}

	switch ct.Name {
	case "fvec_t":
		return vector{ctype: "fvec_t", convert: "PyAubio_ArrayToCFvec"}, true
	case "cvec_t":
		return vector{ctype: "cvec_t", convert: "PyAubio_PyCvecToCCvec"}, true
	case "fmat_t":
		return vector{ctype: "fmat_t", convert: "PyAubio_ArrayToCFmat"}, true
	case "lvec_t":
		return vector{ctype: "lvec_t", convert: "PyAubio_ArrayToCLvec"}, true
	}

	return vector{}, false
}
