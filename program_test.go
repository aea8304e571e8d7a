package kernelfx

import (
	"errors"
	"testing"
)

func TestCompileAndLink(t *testing.T) {
	dev := NewSoftDevice()
	sp, err := CompileAndLink(dev, ConvolutionSource(LanguageKage))
	if err != nil {
		t.Fatal(err)
	}
	defer sp.Dispose()
	pb, err := locateBindings(sp)
	if err != nil {
		t.Fatal(err)
	}
	want := passBindings{position: 0, texCoord: 1, kernel: 0, kernelWeight: 1, viewportSize: 2}
	if pb != want {
		t.Errorf("bindings = %+v, want %+v", pb, want)
	}
	if sp.Source().Language != LanguageKage {
		t.Errorf("Source().Language = %v", sp.Source().Language)
	}
}

func TestCompileAndLinkLanguageMismatch(t *testing.T) {
	_, err := CompileAndLink(NewSoftDevice(), ConvolutionSource(LanguageGLSL330))
	if !errors.Is(err, ErrLink) {
		t.Errorf("err = %v, want ErrLink", err)
	}
}

func TestLocateMissingBinding(t *testing.T) {
	sp, err := CompileAndLink(NewSoftDevice(), ConvolutionSource(LanguageKage))
	if err != nil {
		t.Fatal(err)
	}
	defer sp.Dispose()

	tests := []struct {
		name   string
		locate func(string) (int, error)
		kind   BindingKind
	}{
		{"a_position", sp.LocateAttribute, BindingAttribute},
		{"u_kernel", sp.LocateUniform, BindingUniform},
	}
	for _, tt := range tests {
		loc, err := tt.locate(tt.name)
		if loc != -1 || !errors.Is(err, ErrMissingBinding) {
			t.Errorf("locate(%s) = %d, %v", tt.name, loc, err)
			continue
		}
		var be *BindingError
		if !errors.As(err, &be) || be.Kind != tt.kind || be.Name != tt.name {
			t.Errorf("binding error = %+v, want %v %s", be, tt.kind, tt.name)
		}
	}
}

func TestGLSLSourceBindings(t *testing.T) {
	src := ConvolutionSource(LanguageGLSL330)
	if src.Vertex == "" || src.Fragment == "" {
		t.Fatal("GLSL program needs both stages")
	}
	if src.Bindings.Kernel != "u_kernel" || src.Bindings.Position != "a_position" {
		t.Errorf("bindings = %+v", src.Bindings)
	}
}
