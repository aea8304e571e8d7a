// Package kernelfx applies chains of 3x3 convolution kernels (blur, sharpen,
// edge detection, emboss and so on) to a raster image on the GPU.
//
// # Quick start
//
// A [Pipeline] runs on a [Device]. [NewEbitenDevice] renders through
// [Ebitengine], [NewSoftDevice] runs the same program on the CPU, and the
// gldevice sub-package targets raw OpenGL 3.3:
//
//	dev := kernelfx.NewSoftDevice()
//	p, err := kernelfx.New(dev, kernelfx.WithViewport(640, 480))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Dispose()
//
//	if err := p.LoadImage(ctx, "photo.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	if err := p.ApplyEffects("gaussianBlur", "edgeDetect2"); err != nil {
//		log.Fatal(err)
//	}
//	img, err := p.Snapshot()
//
// # Rendering model
//
// Every call to [Pipeline.ApplyEffects] starts from the unmodified source
// image. Each named kernel is one full-screen pass reading the previous
// pass's output and writing the other target of a ping-pong framebuffer
// pair. Unknown names are skipped without consuming a target. A final pass
// always draws the identity kernel ("normal") to the visible surface, so the
// image is visible even with an empty chain.
//
// Each pass divides the convolution sum by the kernel weight: the sum of the
// coefficients, or 1 when that sum is not positive (see [KernelWeight]).
// Output alpha is always opaque.
//
// # Kernels
//
// A [KernelRegistry] holds the built-in kernels plus any registered at run
// time. "normal" is reserved for the final pass and never listed. Tap i of a
// [Kernel] reads the texel at [TapOffset](i).
//
// # Threading
//
// A Pipeline belongs to the goroutine that owns its Device. Decode images
// elsewhere and hand them back with [Pipeline.BeginLoad] and
// [Pipeline.CommitLoad]; a stale ticket is rejected with [ErrLoadSuperseded].
//
// # Logging
//
// Nothing is logged unless [SetLogger] installs a [log/slog] logger.
//
// [Ebitengine]: https://ebitengine.org
package kernelfx
