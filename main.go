package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/mickamy/ormrel/internal/gen"
	"github.com/mickamy/ormrel/internal/naming"
)

var version = "dev"

func main() {
	typeNames := flag.String("type", "", "comma-separated struct type names (required)")
	tableName := flag.String("table", "", "table name (optional; inferred from -type if omitted, single type only)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ormrel", version)
		return
	}

	if *typeNames == "" {
		log.Fatal("-type flag is required")
	}
	types := strings.Split(*typeNames, ",")
	if *tableName != "" && len(types) > 1 {
		log.Fatal("-table can only be used with a single -type")
	}

	goFile := os.Getenv("GOFILE")
	if goFile == "" {
		log.Fatal("GOFILE environment variable is not set (run via go:generate)")
	}

	parsed, err := gen.Parse(goFile)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}

	infos := make([]*gen.StructInfo, 0, len(types))
	for _, name := range types {
		info := findStruct(parsed, strings.TrimSpace(name))
		if info == nil {
			log.Fatalf("struct %s not found in %s (or it has no orm fields)", name, goFile)
		}
		info.TableName = *tableName
		if info.TableName == "" {
			info.TableName = inferTableName(info.Name)
		}
		infos = append(infos, info)
	}

	src, err := gen.RenderFile(infos, gen.RenderOption{})
	if err != nil {
		log.Fatalf("render: %v", err)
	}

	outFile := strings.TrimSuffix(filepath.Base(goFile), ".go") + "_gen.go"
	outPath := filepath.Join(filepath.Dir(goFile), outFile)

	if err := os.WriteFile(outPath, src, 0o644); err != nil { //nolint:gosec // generated code should be world-readable
		log.Fatalf("write %s: %v", outPath, err)
	}

	fmt.Printf("ormrel: wrote %s\n", outPath)
}

func findStruct(infos []*gen.StructInfo, name string) *gen.StructInfo {
	for _, info := range infos {
		if info.Name == name {
			return info
		}
	}
	return nil
}

// inferTableName converts a CamelCase type name to a snake_case plural table name.
// e.g. "User" -> "users", "UserProfile" -> "user_profiles"
func inferTableName(typeName string) string {
	return inflection.Plural(naming.CamelToSnake(typeName))
}
