package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/mickamy/ormrel/internal/naming"
)

// RenderOption controls the output of RenderFile.
type RenderOption struct {
	DestPkg      string // output package name (empty = same as source)
	SourceImport string // import path for source package (required when DestPkg is set)
}

// Render generates the Go source code for a single StructInfo.
// The returned bytes are formatted by gofmt.
func Render(info *StructInfo) ([]byte, error) {
	return RenderFile([]*StructInfo{info}, RenderOption{})
}

// RenderFile generates a single Go source file for all given StructInfos.
// The returned bytes are formatted by gofmt.
func RenderFile(infos []*StructInfo, opt RenderOption) ([]byte, error) {
	if len(infos) == 0 {
		return nil, errors.New("no structs to render")
	}
	if opt.DestPkg != "" && opt.SourceImport == "" {
		return nil, errors.New("source import is required when the destination package differs")
	}

	pkg := opt.DestPkg
	if pkg == "" {
		pkg = infos[0].Package
	}

	typePrefix := ""
	if opt.SourceImport != "" {
		// e.g. "github.com/example/model" → "model."
		parts := strings.Split(opt.SourceImport, "/")
		typePrefix = parts[len(parts)-1] + "."
	}

	used := make(map[string]string)
	structs := make([]templateData, 0, len(infos))
	for _, info := range infos {
		data, err := buildTemplateData(info, typePrefix, used)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", info.Name, err)
		}
		structs = append(structs, data)
	}

	fileData := fileTemplateData{
		Package:      pkg,
		SourceImport: opt.SourceImport,
		ExtraImports: extraImports(used, opt.SourceImport),
		Structs:      structs,
	}

	var buf bytes.Buffer
	if err := fileTmpl.Execute(&buf, fileData); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gofmt: %w", err)
	}
	return src, nil
}

type fileTemplateData struct {
	Package      string
	SourceImport string
	ExtraImports []importEntry
	Structs      []templateData
}

type importEntry struct {
	Alias string // empty means the last path segment is used as-is
	Path  string
}

type templateData struct {
	TypeName    string // "model.Book" or "Book"
	TableName   string // "books"
	TableVar    string // "BookTable"
	NewFunc     string // "NewBook"
	FactoryName string // "Books"
	Slots       []slotData
	Relations   []slotData
}

type slotData struct {
	Name   string // Go field name
	Init   string // constructor expression, e.g. `orm.NewField[string]("title")`
	Picker string // relation picker name, e.g. "BookAuthor"
}

func buildTemplateData(info *StructInfo, typePrefix string, used map[string]string) (templateData, error) {
	if info.TableName == "" {
		return templateData{}, errors.New("table name is empty")
	}
	id, err := info.IDField()
	if err != nil {
		return templateData{}, err
	}

	data := templateData{
		TypeName:    typePrefix + info.Name,
		TableName:   info.TableName,
		TableVar:    info.Name + "Table",
		NewFunc:     "New" + info.Name,
		FactoryName: naming.SnakeToCamel(info.TableName),
	}

	for _, f := range info.Fields {
		args := make([]string, len(f.TypeArgs))
		for i, a := range f.TypeArgs {
			args[i] = qualify(a, typePrefix, info.Imports, used)
		}

		slot := slotData{Name: f.Name, Init: initExpr(f, args, id)}
		data.Slots = append(data.Slots, slot)

		if f.IsRelation() {
			slot.Picker = info.Name + f.Name
			data.Relations = append(data.Relations, slot)
		}
	}
	return data, nil
}

func initExpr(f FieldInfo, args []string, id *FieldInfo) string {
	key := strconv.Quote(f.Key)
	typeArgs := "[" + strings.Join(args, ", ") + "]"

	switch f.Kind {
	case KindID:
		if f.UUID {
			return "orm.NewUUID(" + key + ")"
		}
		return "orm.NewID" + typeArgs + "(" + key + ")"
	case KindTimestamp:
		trigger := "orm.TimestampUpdate"
		if f.Trigger == "create" {
			trigger = "orm.TimestampCreate"
		}
		return "orm.NewTimestamp(" + key + ", " + trigger + ")"
	case KindParent:
		return "orm.NewParent" + typeArgs + "(" + key + ")"
	case KindOptionalParent:
		return "orm.NewOptionalParent" + typeArgs + "(" + key + ")"
	case KindChildren:
		expr := "orm.NewChildren" + typeArgs + "(" + key + ", " + strconv.Quote(f.ForeignKey)
		if id != nil && id.Key != "id" {
			expr += ", orm.OwnedBy" + typeArgs + "(" + strconv.Quote(id.Key) + ")"
		}
		return expr + ")"
	default:
		return "orm.NewField" + typeArgs + "(" + key + ")"
	}
}

// qualify rewrites a type argument so it resolves from the output package.
// Package-local exported identifiers gain the source package prefix, and
// package selectors record the import they need.
func qualify(arg, typePrefix string, imports map[string]string, used map[string]string) string {
	ptr := ""
	for strings.HasPrefix(arg, "*") || strings.HasPrefix(arg, "[]") {
		if strings.HasPrefix(arg, "*") {
			ptr += "*"
			arg = arg[1:]
		} else {
			ptr += "[]"
			arg = arg[2:]
		}
	}

	if pkg, _, ok := strings.Cut(arg, "."); ok {
		if p, ok := imports[pkg]; ok {
			used[pkg] = p
		}
		return ptr + arg
	}
	if typePrefix != "" && arg != "" && unicode.IsUpper(rune(arg[0])) {
		return ptr + typePrefix + arg
	}
	return ptr + arg
}

func extraImports(used map[string]string, sourceImport string) []importEntry {
	entries := make([]importEntry, 0, len(used))
	for name, p := range used {
		if p == OrmImport || p == sourceImport {
			continue
		}
		e := importEntry{Path: p}
		if name != lastSegment(p) {
			e.Alias = name
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func lastSegment(p string) string {
	parts := strings.Split(p, "/")
	return parts[len(parts)-1]
}

var fileTmpl = template.Must(template.New("file").Parse(`// Code generated by ormrel; DO NOT EDIT.

package {{ .Package }}

import (
{{- range .ExtraImports }}
	{{ if .Alias }}{{ .Alias }} {{ end }}"{{ .Path }}"
{{- end }}
{{- if .SourceImport }}
	"{{ .SourceImport }}"
{{- end }}

	"github.com/mickamy/ormrel/orm"
)
{{ range .Structs }}{{ $type := .TypeName }}
// {{ .NewFunc }} returns a new {{ .TypeName }} with every slot bound to its key.
func {{ .NewFunc }}() *{{ .TypeName }} {
	return &{{ .TypeName }}{
{{- range .Slots }}
		{{ .Name }}: {{ .Init }},
{{- end }}
	}
}

// {{ .TableVar }} is the registered schema of {{ .TypeName }}.
var {{ .TableVar }} = orm.NewTable("{{ .TableName }}", {{ .NewFunc }},
{{- range .Slots }}
	orm.Prop("{{ .Name }}", func(r *{{ $type }}) orm.Property { return &r.{{ .Name }} }),
{{- end }}
)

// {{ .FactoryName }} returns a new Query for {{ .TypeName }}.
func {{ .FactoryName }}(db orm.Querier) *orm.Query[{{ .TypeName }}] {
	return {{ .TableVar }}.Query(db)
}
{{ range .Relations }}
// {{ .Picker }} selects {{ .Name }} for eager loading.
func {{ .Picker }}(r *{{ $type }}) orm.EagerLoader { return &r.{{ .Name }} }
{{ end }}
{{- end }}
`))
