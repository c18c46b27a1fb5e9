// Package report cross-checks a library against the declarations it was
// built from and prints it for inspection.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/phuslu/log"
	"gopkg.in/yaml.v3"

	"github.com/ardanlabs/aubio-extgen/parser"
)

// Missing returns the declarations not filed under any object, in order.
func Missing(lib *parser.Library, decls []string) []string {
	found := make(map[string]struct{})
	for _, o := range lib.Objects() {
		for _, r := range parser.Roles() {
			for _, d := range o.Bucket(r) {
				found[d] = struct{}{}
			}
		}
	}

	var missing []string
	for _, d := range decls {
		if _, ok := found[d]; !ok {
			missing = append(missing, d)
		}
	}

	return missing
}

// LogMissing logs every unattributed declaration at info level.
func LogMissing(logger *log.Logger, lib *parser.Library, decls []string) int {
	missing := Missing(lib, decls)
	for _, d := range missing {
		logger.Info().Str("decl", d).Msg("missing")
	}
	return len(missing)
}

// Dump writes one row per object and role.
func Dump(w io.Writer, lib *parser.Library) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OBJECT", "FAMILY", "DECLARATIONS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")

	for _, o := range lib.Objects() {
		table.Append([]string{o.ShortName, "longname", o.LongName})
		table.Append([]string{o.ShortName, "shortname", o.ShortName})
		for _, r := range parser.Roles() {
			table.Append([]string{o.ShortName, r.String(), formatBucket(o.Bucket(r))})
		}
	}

	table.Render()
}

func formatBucket(decls []string) string {
	switch len(decls) {
	case 0:
		return "[]"
	case 1:
		return decls[0]
	default:
		return "[" + strings.Join(decls, ", ") + "]"
	}
}

type objectDoc struct {
	LongName  string   `yaml:"longname"`
	ShortName string   `yaml:"shortname"`
	Struct    []string `yaml:"struct,omitempty"`
	New       []string `yaml:"new,omitempty"`
	Del       []string `yaml:"del,omitempty"`
	Do        []string `yaml:"do,omitempty"`
	RDo       []string `yaml:"rdo,omitempty"`
	Get       []string `yaml:"get,omitempty"`
	Set       []string `yaml:"set,omitempty"`
	Other     []string `yaml:"other,omitempty"`
}

// WriteYAML writes the library as a YAML sequence of objects.
func WriteYAML(w io.Writer, lib *parser.Library) error {
	docs := make([]objectDoc, 0, lib.Len())
	for _, o := range lib.Objects() {
		docs = append(docs, objectDoc{
			LongName:  o.LongName,
			ShortName: o.ShortName,
			Struct:    o.Bucket(parser.RoleStruct),
			New:       o.Bucket(parser.RoleNew),
			Del:       o.Bucket(parser.RoleDel),
			Do:        o.Bucket(parser.RoleDo),
			RDo:       o.Bucket(parser.RoleRDo),
			Get:       o.Bucket(parser.RoleGet),
			Set:       o.Bucket(parser.RoleSet),
			Other:     o.Bucket(parser.RoleOther),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encoding library: %w", err)
	}
	return enc.Close()
}
