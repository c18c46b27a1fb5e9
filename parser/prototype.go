package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNotAFunction = errors.New("not a function prototype")

var funcRe = regexp.MustCompile(`^\s*((?:const\s+)?(?:unsigned\s+)?(?:struct\s+)?\w+(?:\s*\*)*)\s+(\w+)\s*\(([^)]*)\)\s*;\s*$`)

// ParsePrototype splits a normalized function declaration into its parts.
func ParsePrototype(decl string) (Function, error) {
	m := funcRe.FindStringSubmatch(decl)
	if len(m) < 4 {
		return Function{}, fmt.Errorf("%w: %q", ErrNotAFunction, decl)
	}

	fn := Function{
		Name:       strings.TrimSpace(m[2]),
		ReturnType: parseCType(m[1]),
	}

	paramsStr := strings.TrimSpace(m[3])
	if paramsStr != "void" && paramsStr != "" {
		fn.Params, fn.IsVariadic = parseParams(paramsStr)
	}

	return fn, nil
}

func parseParams(paramsStr string) ([]FunctionParam, bool) {
	var params []FunctionParam
	isVariadic := false

	parts := strings.Split(paramsStr, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if part == "..." {
			isVariadic = true
			continue
		}

		tokens := strings.Fields(part)
		if len(tokens) < 2 {
			params = append(params, FunctionParam{
				Type: parseCType(part),
			})
			continue
		}

		name := tokens[len(tokens)-1]
		typeParts := tokens[:len(tokens)-1]

		if strings.HasPrefix(name, "*") {
			stars := strings.Repeat("*", len(name)-len(strings.TrimLeft(name, "*")))
			name = strings.TrimLeft(name, "*")
			typeParts = append(typeParts, stars)
		}

		// "uint_t *" without a parameter name
		if name == "" || name == "*" {
			params = append(params, FunctionParam{
				Type: parseCType(part),
			})
			continue
		}

		params = append(params, FunctionParam{
			Name: name,
			Type: parseCType(strings.Join(typeParts, " ")),
		})
	}

	return params, isVariadic
}

func parseCType(typeStr string) CType {
	typeStr = strings.TrimSpace(typeStr)

	ct := CType{}

	if strings.Contains(typeStr, "const") {
		ct.IsConst = true
		typeStr = strings.ReplaceAll(typeStr, "const", "")
		typeStr = strings.TrimSpace(typeStr)
	}

	if strings.Contains(typeStr, "unsigned") {
		ct.IsUnsigned = true
		typeStr = strings.ReplaceAll(typeStr, "unsigned", "")
		typeStr = strings.TrimSpace(typeStr)
	}

	if n := strings.Count(typeStr, "*"); n > 0 {
		ct.IsPointer = true
		ct.PointerDepth = n
		typeStr = strings.ReplaceAll(typeStr, "*", "")
		typeStr = strings.TrimSpace(typeStr)
	}

	typeStr = strings.TrimSpace(strings.TrimPrefix(typeStr, "struct "))
	ct.Name = strings.Join(strings.Fields(typeStr), " ")

	return ct
}
