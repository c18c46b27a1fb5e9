package parser

import (
	"iter"
	"strings"
)

// roleMarkers is checked in order; the first marker found in a declaration
// decides its role.
var roleMarkers = []struct {
	marker string
	role   Role
}{
	{"typedef struct", RoleStruct},
	{"_do", RoleDo},
	{"_rdo", RoleRDo},
	{"new_", RoleNew},
	{"del_", RoleDel},
	{"_get_", RoleGet},
	{"_set_", RoleSet},
}

// BuildLibrary files every declaration associated with one of the named
// objects into that object's role buckets.
func BuildLibrary(objects iter.Seq[string], decls []string) *Library {
	lib := newLibrary()

	idents := make([]string, len(decls))
	for i, d := range decls {
		idents[i] = identifier(d)
	}

	for longName := range objects {
		obj := newObject(longName, ShortName(longName))
		root := fullShortName(longName)

		for i, d := range decls {
			if !associated(idents[i], root) {
				continue
			}
			obj.add(classify(d), d)
		}

		lib.put(obj)
	}

	return lib
}

func associated(ident, root string) bool {
	return strings.HasPrefix(ident, root+"_") || strings.HasSuffix(ident, root)
}

func classify(decl string) Role {
	for _, m := range roleMarkers {
		if strings.Contains(decl, m.marker) {
			return m.role
		}
	}
	return RoleOther
}
