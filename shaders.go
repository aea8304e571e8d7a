package kernelfx

// --- Convolution program sources ---
// Both languages sample nine taps one viewport pixel apart, divide by the
// kernel weight and force the output opaque.

// convolutionKage runs on Ebitengine, whose vertex stage is fixed. Positions
// are in pixels (//kage:unit pixels), so one viewport pixel is
// imageSrc0Size()/ViewportSize source texels. Taps are clamped to texel
// centers inside the source region to emulate edge clamping.
const convolutionKage = `//kage:unit pixels
package main

var Kernel [9]float
var KernelWeight float
var ViewportSize vec2

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	origin := imageSrc0Origin()
	size := imageSrc0Size()
	step := size / ViewportSize
	lo := origin + vec2(0.5)
	hi := origin + size - vec2(0.5)
	sum := vec4(0)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			offset := vec2(float(i-1), float(1-j)) * step
			sum += imageSrc0At(clamp(src+offset, lo, hi)) * Kernel[i*3+j]
		}
	}
	return vec4((sum / KernelWeight).rgb, 1)
}
`

const convolutionVertexGLSL = `#version 330 core
in vec2 a_position;
in vec2 a_texturePos;
out vec2 v_texturePos;

void main() {
	gl_Position = vec4(a_position, 0.0, 1.0);
	v_texturePos = a_texturePos;
}
`

const convolutionFragmentGLSL = `#version 330 core
uniform sampler2D u_image;
uniform float u_kernel[9];
uniform float u_kernelWeight;
uniform vec2 u_viewportSize;
in vec2 v_texturePos;
out vec4 fragColor;

int transformLoc(int row, int col) {
	return (row + 1) * 3 + (col + 1);
}

void main() {
	vec2 onePixel = vec2(1.0, 1.0) / u_viewportSize;
	vec4 colorSum = vec4(0.0);
	for (int i = -1; i <= 1; ++i) {
		for (int j = -1; j <= 1; ++j) {
			colorSum += texture(u_image, v_texturePos + onePixel * vec2(float(i), float(j))) *
				u_kernel[transformLoc(i, j)];
		}
	}
	fragColor = vec4((colorSum / u_kernelWeight).rgb, 1.0);
}
`

// ConvolutionSource returns the convolution program for a shader language.
func ConvolutionSource(lang ShaderLanguage) ProgramSource {
	switch lang {
	case LanguageGLSL330:
		return ProgramSource{
			Language: LanguageGLSL330,
			Vertex:   convolutionVertexGLSL,
			Fragment: convolutionFragmentGLSL,
			Bindings: Bindings{
				Position:     "a_position",
				TexCoord:     "a_texturePos",
				Kernel:       "u_kernel",
				KernelWeight: "u_kernelWeight",
				ViewportSize: "u_viewportSize",
			},
		}
	default:
		return ProgramSource{
			Language: LanguageKage,
			Fragment: convolutionKage,
			Bindings: Bindings{
				Position:     "dst",
				TexCoord:     "src",
				Kernel:       "Kernel",
				KernelWeight: "KernelWeight",
				ViewportSize: "ViewportSize",
			},
		}
	}
}

// ImageUniformGLSL is the sampler uniform of the GLSL program. It is bound to
// texture unit 0 once after linking.
const ImageUniformGLSL = "u_image"
