package core

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func loadCorePackage(t *testing.T) *packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedSyntax | packages.NeedFiles, Dir: "."}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		t.Fatalf("load core package: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected one package, got %d", len(pkgs))
	}
	return pkgs[0]
}

// TestNoTypeAliases keeps core types nominal; shared primitives live in pkg/domain.
func TestNoTypeAliases(t *testing.T) {
	pkg := loadCorePackage(t)
	var aliases []string
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || !ts.Assign.IsValid() {
					continue
				}
				pos := pkg.Fset.Position(ts.Pos())
				aliases = append(aliases, fmt.Sprintf("%s:%d type %s", filepath.Base(pos.Filename), pos.Line, ts.Name.Name))
			}
		}
	}
	if len(aliases) > 0 {
		t.Fatalf("type aliases are forbidden in internal/core; found %d:\n%s", len(aliases), strings.Join(aliases, "\n"))
	}
}

// TestCoreIsTransportFree ensures the facade never depends on a transport or
// on the event side-effect packages built on top of it.
func TestCoreIsTransportFree(t *testing.T) {
	pkg := loadCorePackage(t)
	forbidden := []string{
		"net/http",
		"github.com/gorilla/",
		"github.com/go-redis/",
		"messagecore/internal/httpapi",
		"messagecore/internal/archive",
		"messagecore/internal/relay",
		"messagecore/internal/blob",
	}
	for path := range pkg.Imports {
		for _, prefix := range forbidden {
			if strings.HasPrefix(path, prefix) {
				t.Errorf("internal/core must not import %s", path)
			}
		}
	}
}
