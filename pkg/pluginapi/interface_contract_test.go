package pluginapi

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

var contractInterfaces = []string{"TreeModel", "StandModel", "HarvestModel", "CriteriaProvider", "Registry", "Plugin"}

// TestInterfaceContract keeps the model surface interface-only and free of
// internal imports so plugins never reach into the simulator.
func TestInterfaceContract(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	fset := token.NewFileSet()
	found := make(map[string]bool)

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Clean(name), nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, imp := range fileAst.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			if strings.Contains(path, "/internal/") {
				t.Errorf("forbidden import of internal package: %s", path)
			}
		}
		for _, decl := range fileAst.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				for _, want := range contractInterfaces {
					if ts.Name.Name != want {
						continue
					}
					if _, isIface := ts.Type.(*ast.InterfaceType); !isIface || ts.Assign.IsValid() {
						t.Errorf("%s must be an interface declaration", want)
					}
					found[want] = true
				}
			}
		}
	}
	for _, want := range contractInterfaces {
		if !found[want] {
			t.Errorf("%s interface not found", want)
		}
	}
}

func TestVersionProvider(t *testing.T) {
	if got := GetVersionProvider().APIVersion(); got != "v1" {
		t.Fatalf("expected API version v1, got %q", got)
	}
}

func TestParseCutMethod(t *testing.T) {
	cases := []struct {
		raw   string
		want  CutMethod
		label string
		ok    bool
	}{
		{"PERCENTOFTREES", CutPercentOfTrees, "Percent of trees", true},
		{" volume ", CutVolume, "Volumen", true},
		{"Area", CutArea, "Area", true},
		{"BASAL", "", "Empty", false},
	}
	for _, tc := range cases {
		got, err := ParseCutMethod(tc.raw)
		if (err == nil) != tc.ok {
			t.Fatalf("%q: unexpected error state %v", tc.raw, err)
		}
		if got != tc.want || got.Label() != tc.label {
			t.Fatalf("%q: got %q/%q", tc.raw, got, got.Label())
		}
	}
	if len(CutMethods()) != 3 {
		t.Fatalf("expected three cut methods")
	}
}
