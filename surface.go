package kernelfx

import "image"

// SurfaceBinding owns the visible drawing surface of a Device and its
// viewport. The surface keeps its contents between presented frames, so a
// rendered result stays visible without redrawing.
type SurfaceBinding struct {
	dev  Device
	size image.Point
}

// NewSurfaceBinding sizes dev's surface to width x height.
func NewSurfaceBinding(dev Device, width, height int) (*SurfaceBinding, error) {
	s := &SurfaceBinding{dev: dev}
	if err := s.SetViewport(width, height); err != nil {
		return nil, err
	}
	return s, nil
}

// SetViewport resizes the surface and the viewport rectangle together.
func (s *SurfaceBinding) SetViewport(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if err := s.dev.SetViewport(width, height); err != nil {
		return &ResourceError{Op: "resize surface", Err: err}
	}
	s.size = image.Pt(width, height)
	return nil
}

// Size returns the current viewport size.
func (s *SurfaceBinding) Size() image.Point { return s.size }

// Read copies the surface contents.
func (s *SurfaceBinding) Read() (*image.NRGBA, error) {
	return s.dev.ReadSurface()
}
