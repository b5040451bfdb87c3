package gen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/mickamy/ormrel/internal/naming"
)

// OrmImport is the import path of the runtime package whose slot types the
// parser recognises.
const OrmImport = "github.com/mickamy/ormrel/orm"

// Kind is the orm slot type of a struct field.
type Kind int

const (
	KindField Kind = iota + 1
	KindID
	KindTimestamp
	KindParent
	KindOptionalParent
	KindChildren
)

// FieldInfo holds parsed metadata for one struct field.
type FieldInfo struct {
	Name     string   // Go field name, e.g. "Author"
	Kind     Kind     // slot type
	Key      string   // stored key, e.g. "author_id"; for children the relation name
	TypeArgs []string // type arguments as written, e.g. ["Author", "int64"]

	UUID       bool   // ID only: generate UUIDs on insert
	Trigger    string // Timestamp only: "create" or "update"
	ForeignKey string // Children only: foreign key column on the child table
}

// IsRelation reports whether the field can be eager loaded.
func (f FieldInfo) IsRelation() bool {
	return f.Kind == KindParent || f.Kind == KindOptionalParent || f.Kind == KindChildren
}

// StructInfo holds parsed metadata for one record struct.
type StructInfo struct {
	Name      string            // Go struct name, e.g. "Book"
	Package   string            // Package name, e.g. "model"
	Fields    []FieldInfo       // orm slots in declaration order
	Imports   map[string]string // local name -> import path of the source file
	TableName string            // Set by the caller (from CLI flag)
}

// IDField returns the identifier field, nil when there is none, or an error
// when several are declared.
func (s *StructInfo) IDField() (*FieldInfo, error) {
	var id *FieldInfo
	for i := range s.Fields {
		if s.Fields[i].Kind != KindID {
			continue
		}
		if id != nil {
			return nil, fmt.Errorf("multiple identifiers: %s and %s", id.Name, s.Fields[i].Name)
		}
		id = &s.Fields[i]
	}
	return id, nil
}

// Parse reads the Go file at filePath and returns StructInfo for every struct
// that has at least one orm slot.
func Parse(filePath string) ([]*StructInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}

	imports := fileImports(file)
	ormName := ""
	for name, p := range imports {
		if p == OrmImport {
			ormName = name
		}
	}
	if ormName == "" {
		return nil, nil
	}

	pkg := file.Name.Name
	var infos []*StructInfo
	var parseErr error

	ast.Inspect(file, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok || parseErr != nil {
			return true
		}

		st, ok := ts.Type.(*ast.StructType)
		if !ok {
			return true
		}

		fields, err := parseStructFields(ts.Name.Name, ormName, st)
		if err != nil {
			parseErr = fmt.Errorf("%s: %w", ts.Name.Name, err)
			return false
		}
		if len(fields) == 0 {
			return true
		}

		infos = append(infos, &StructInfo{
			Name:    ts.Name.Name,
			Package: pkg,
			Fields:  fields,
			Imports: imports,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return infos, nil
}

func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := path.Base(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		imports[name] = p
	}
	return imports
}

func parseStructFields(owner, ormName string, st *ast.StructType) ([]FieldInfo, error) {
	fields := make([]FieldInfo, 0, len(st.Fields.List))
	for _, field := range st.Fields.List {
		fi, skip, err := parseField(owner, ormName, field)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		fields = append(fields, fi)
	}
	return fields, nil
}

func parseField(owner, ormName string, field *ast.Field) (FieldInfo, bool, error) {
	if len(field.Names) == 0 || !field.Names[0].IsExported() {
		return FieldInfo{}, true, nil
	}
	name := field.Names[0].Name

	kind, args, ok := slotType(ormName, field.Type)
	if !ok {
		return FieldInfo{}, true, nil
	}

	var tag reflect.StructTag
	if field.Tag != nil {
		tag = reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
	}

	fi := FieldInfo{Name: name, Kind: kind, TypeArgs: args}

	// Defaults: key inferred from the field name; relations store "<name>_id".
	fi.Key = naming.CamelToSnake(name)
	switch kind {
	case KindParent, KindOptionalParent:
		fi.Key += "_id"
	case KindTimestamp:
		switch name {
		case "CreatedAt":
			fi.Trigger = "create"
		case "UpdatedAt":
			fi.Trigger = "update"
		}
	case KindChildren:
		fi.ForeignKey = naming.CamelToSnake(owner) + "_id"
	}

	if dbTag, ok := tag.Lookup("db"); ok {
		if dbTag == "-" {
			return FieldInfo{}, true, nil
		}
		parts := strings.Split(dbTag, ",")
		if parts[0] != "" {
			fi.Key = parts[0]
		}
		for _, opt := range parts[1:] {
			switch opt {
			case "uuid":
				fi.UUID = true
			case "createdAt":
				fi.Trigger = "create"
			case "updatedAt":
				fi.Trigger = "update"
			default:
				return FieldInfo{}, false, fmt.Errorf("field %s: unknown db option %q", name, opt)
			}
		}
	}

	if relTag, ok := tag.Lookup("rel"); ok {
		for _, opt := range strings.Split(relTag, ",") {
			if fk, ok := strings.CutPrefix(opt, "foreign_key:"); ok {
				fi.ForeignKey = fk
			}
		}
	}

	if fi.UUID && (kind != KindID || len(args) != 1 || args[0] != "string") {
		return FieldInfo{}, false, fmt.Errorf("field %s: uuid requires orm.ID[string]", name)
	}
	if kind == KindTimestamp && fi.Trigger == "" {
		return FieldInfo{}, false, fmt.Errorf("field %s: timestamp needs createdAt or updatedAt", name)
	}

	return fi, false, nil
}

// slotType matches orm.<Slot>[Args...] and returns the slot kind and its
// type arguments.
func slotType(ormName string, expr ast.Expr) (Kind, []string, bool) {
	var base ast.Expr
	var args []ast.Expr
	switch t := expr.(type) {
	case *ast.IndexExpr:
		base, args = t.X, []ast.Expr{t.Index}
	case *ast.IndexListExpr:
		base, args = t.X, t.Indices
	default:
		base = expr
	}

	sel, ok := base.(*ast.SelectorExpr)
	if !ok {
		return 0, nil, false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != ormName {
		return 0, nil, false
	}

	kinds := map[string]struct {
		kind  Kind
		arity int
	}{
		"Field":          {KindField, 1},
		"ID":             {KindID, 1},
		"Timestamp":      {KindTimestamp, 0},
		"Parent":         {KindParent, 2},
		"OptionalParent": {KindOptionalParent, 2},
		"Children":       {KindChildren, 2},
	}
	k, ok := kinds[sel.Sel.Name]
	if !ok || len(args) != k.arity {
		return 0, nil, false
	}

	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = typeToString(a)
	}
	return k.kind, strs, true
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeToString(t.Elt)
		}
		return fmt.Sprintf("[%s]%s", typeToString(t.Len), typeToString(t.Elt))
	case *ast.MapType:
		return "map[" + typeToString(t.Key) + "]" + typeToString(t.Value)
	case *ast.IndexExpr:
		return typeToString(t.X) + "[" + typeToString(t.Index) + "]"
	case *ast.IndexListExpr:
		parts := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			parts[i] = typeToString(idx)
		}
		return typeToString(t.X) + "[" + strings.Join(parts, ", ") + "]"
	case *ast.BasicLit:
		return t.Value
	default:
		return fmt.Sprintf("%T", expr)
	}
}
