package kernelfx

// Kernel is a 3x3 convolution kernel.
//
// Coefficient k weights the texel at horizontal offset k/3-1 and vertical
// offset k%3-1, where a positive vertical offset points towards the top of
// the image. Symmetric kernels read the same either way; directional ones
// (emboss, sobel) follow this layout.
type Kernel [9]float32

// NormalKernel is the reserved name of the identity kernel. It is always used
// for the final on-screen pass and never listed as a selectable effect.
const NormalKernel = "normal"

// IdentityKernel reproduces its input unchanged.
var IdentityKernel = Kernel{0, 0, 0, 0, 1, 0, 0, 0, 0}

// KernelWeight returns the divisor applied to a pass's convolution sum: the
// sum of the coefficients, or 1 when that sum is zero or negative.
func KernelWeight(k Kernel) float32 {
	var sum float32
	for _, c := range k {
		sum += c
	}
	if sum <= 0 {
		return 1
	}
	return sum
}

// TapOffset returns the image-space offset (y grows downward) sampled by
// coefficient i.
func TapOffset(i int) (dx, dy int) {
	return i/3 - 1, 1 - i%3
}

type namedKernel struct {
	name   string
	kernel Kernel
}

// builtinKernels is the seed table, in listing order.
var builtinKernels = []namedKernel{
	{NormalKernel, IdentityKernel},
	{"gaussianBlur", Kernel{
		0.045, 0.122, 0.045,
		0.122, 0.332, 0.122,
		0.045, 0.122, 0.045,
	}},
	{"gaussianBlur2", Kernel{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}},
	{"gaussianBlur3", Kernel{
		0, 1, 0,
		1, 1, 1,
		0, 1, 0,
	}},
	{"unsharpen", Kernel{
		-1, -1, -1,
		-1, 9, -1,
		-1, -1, -1,
	}},
	{"sharpness", Kernel{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	}},
	{"sharpen", Kernel{
		-1, -1, -1,
		-1, 16, -1,
		-1, -1, -1,
	}},
	{"edgeDetect", Kernel{
		-0.125, -0.125, -0.125,
		-0.125, 1, -0.125,
		-0.125, -0.125, -0.125,
	}},
	{"edgeDetect2", Kernel{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}},
	{"edgeDetect3", Kernel{
		-5, 0, 0,
		0, 0, 0,
		0, 0, 5,
	}},
	{"edgeDetect4", Kernel{
		-1, -1, -1,
		0, 0, 0,
		1, 1, 1,
	}},
	{"edgeDetect5", Kernel{
		-1, -1, -1,
		2, 2, 2,
		-1, -1, -1,
	}},
	{"edgeDetect6", Kernel{
		-5, -5, -5,
		-5, 39, -5,
		-5, -5, -5,
	}},
	{"sobelHorizontal", Kernel{
		1, 2, 1,
		0, 0, 0,
		-1, -2, -1,
	}},
	{"sobelVertical", Kernel{
		1, 0, -1,
		2, 0, -2,
		1, 0, -1,
	}},
	{"previtHorizontal", Kernel{
		1, 1, 1,
		0, 0, 0,
		-1, -1, -1,
	}},
	{"previtVertical", Kernel{
		1, 0, -1,
		1, 0, -1,
		1, 0, -1,
	}},
	{"boxBlur", Kernel{
		0.111, 0.111, 0.111,
		0.111, 0.111, 0.111,
		0.111, 0.111, 0.111,
	}},
	{"triangleBlur", Kernel{
		0.0625, 0.125, 0.0625,
		0.125, 0.25, 0.125,
		0.0625, 0.125, 0.0625,
	}},
	{"emboss", Kernel{
		-2, -1, 0,
		-1, 1, 1,
		0, 1, 2,
	}},
}

// BuiltinKernel returns a copy of the named built-in kernel, including
// "normal".
func BuiltinKernel(name string) (Kernel, bool) {
	for _, nk := range builtinKernels {
		if nk.name == name {
			return nk.kernel, true
		}
	}
	return Kernel{}, false
}
