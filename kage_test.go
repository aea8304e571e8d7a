package kernelfx

import (
	"errors"
	"slices"
	"testing"
)

func TestReflectConvolutionKage(t *testing.T) {
	r, err := ReflectKage(convolutionKage)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Kernel", "KernelWeight", "ViewportSize"}; !slices.Equal(r.Uniforms, want) {
		t.Errorf("Uniforms = %v, want %v", r.Uniforms, want)
	}
	if want := []string{"dst", "src", "color"}; !slices.Equal(r.Attributes, want) {
		t.Errorf("Attributes = %v, want %v", r.Attributes, want)
	}
	b := ConvolutionSource(LanguageKage).Bindings
	if loc, err := r.attributeLocation(b.Position); err != nil || loc != 0 {
		t.Errorf("position location = %d, %v", loc, err)
	}
	if loc, err := r.attributeLocation(b.TexCoord); err != nil || loc != 1 {
		t.Errorf("texcoord location = %d, %v", loc, err)
	}
}

func TestReflectKageErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"syntax", "package main\nfunc Fragment(", ErrCompile},
		{"wrong package", "package shader\nfunc Fragment(dst vec4) vec4 { return dst }", ErrCompile},
		{"no fragment", "package main\nvar Kernel [9]float\n", ErrLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReflectKage(tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var se *ShaderError
			if !errors.As(err, &se) || se.Log == "" {
				t.Errorf("missing shader log: %v", err)
			}
		})
	}
}

func TestReflectKageIgnoresUnexported(t *testing.T) {
	src := `package main

var Scale float
var scratch float

func helper(x float) float { return x }

func Fragment(dst vec4, src vec2) vec4 {
	return vec4(Scale)
}
`
	r, err := ReflectKage(src)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(r.Uniforms, []string{"Scale"}) {
		t.Errorf("Uniforms = %v, want [Scale]", r.Uniforms)
	}
	if _, err := r.uniformLocation("scratch"); !errors.Is(err, ErrMissingBinding) {
		t.Errorf("uniformLocation(scratch) = %v, want ErrMissingBinding", err)
	}
}
