package kernelfx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"slices"
)

// KageReflection lists the bindings a Kage program declares: exported
// top-level variables are uniforms, the parameters of Fragment are the
// per-vertex inputs.
type KageReflection struct {
	Uniforms   []string
	Attributes []string
}

// ReflectKage parses a Kage source. Kage is Go syntax, so go/parser reads it
// directly. A syntax error is reported as a fragment compile error; a missing
// Fragment entry point as a link error.
func ReflectKage(src string) (KageReflection, error) {
	var r KageReflection
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "shader.kage", src, parser.SkipObjectResolution)
	if err != nil {
		return r, &ShaderError{Stage: "fragment", Log: err.Error()}
	}
	if f.Name.Name != "main" {
		return r, &ShaderError{Stage: "fragment", Log: "package must be main, got " + f.Name.Name}
	}

	hasFragment := false
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				vs := spec.(*ast.ValueSpec)
				for _, id := range vs.Names {
					if ast.IsExported(id.Name) {
						r.Uniforms = append(r.Uniforms, id.Name)
					}
				}
			}
		case *ast.FuncDecl:
			if d.Recv != nil || d.Name.Name != "Fragment" {
				continue
			}
			hasFragment = true
			for _, field := range d.Type.Params.List {
				for _, id := range field.Names {
					r.Attributes = append(r.Attributes, id.Name)
				}
			}
		}
	}
	if !hasFragment {
		return r, &ShaderError{Stage: "link", Log: "no Fragment entry point"}
	}
	return r, nil
}

// uniformLocation returns the index of name in r.Uniforms.
func (r KageReflection) uniformLocation(name string) (int, error) {
	if i := slices.Index(r.Uniforms, name); i >= 0 {
		return i, nil
	}
	return -1, &BindingError{Kind: BindingUniform, Name: name}
}

// attributeLocation returns the index of name in r.Attributes.
func (r KageReflection) attributeLocation(name string) (int, error) {
	if i := slices.Index(r.Attributes, name); i >= 0 {
		return i, nil
	}
	return -1, &BindingError{Kind: BindingAttribute, Name: name}
}
