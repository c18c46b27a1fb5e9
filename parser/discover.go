package parser

import (
	"iter"
	"strings"
)

const (
	objectTypedef = "typedef struct _aubio"
	objectPrefix  = "aubio_"
	objectSuffix  = "_t"
)

// Discover yields the long names of the opaque object types declared in
// decls, leaving out those whose short name is in skip.
func Discover(decls []string, skip SkipSet) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, d := range decls {
			if !strings.HasPrefix(d, objectTypedef) {
				continue
			}

			name, ok := typedefName(d)
			if !ok {
				continue
			}

			if skip.Contains(stripAffixes(name)) {
				continue
			}

			if !yield(name) {
				return
			}
		}
	}
}

func typedefName(decl string) (string, bool) {
	fields := strings.Fields(decl)
	if len(fields) < 4 {
		return "", false
	}

	name := fields[3]
	if strings.HasPrefix(name, "{") {
		name = bodyTypedefName(decl)
	}
	name = strings.TrimSuffix(name, ";")

	return name, name != ""
}

// stripAffixes drops the fixed prefix and suffix without checking they are
// present, the way discovery filters against the skip set.
func stripAffixes(longName string) string {
	if len(longName) < len(objectPrefix)+len(objectSuffix) {
		return ""
	}
	return longName[len(objectPrefix) : len(longName)-len(objectSuffix)]
}

// ShortName derives the logical object name from its long type name.
func ShortName(longName string) string {
	if !strings.HasPrefix(longName, objectPrefix) {
		return longName
	}
	return stripAffixes(longName)
}

func fullShortName(longName string) string {
	if len(longName) < len(objectSuffix) {
		return longName
	}
	return longName[:len(longName)-len(objectSuffix)]
}

// bodyTypedefName returns the name following the closing brace of a
// typedef with a struct body.
func bodyTypedefName(decl string) string {
	_, after, _ := strings.Cut(decl, "}")
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(after), ";"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// identifier returns the declared name: the last token before the first
// parenthesis, or of the whole declaration when there is none. A trailing
// ";" stays, so "extern aubio_foo_t * g_aubio_foo;" belongs to no object.
func identifier(decl string) string {
	head, _, _ := strings.Cut(decl, "(")

	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}

	return fields[len(fields)-1]
}
