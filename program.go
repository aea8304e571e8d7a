package kernelfx

import "errors"

// ShaderProgram owns a linked vertex/fragment program on a Device.
type ShaderProgram struct {
	dev    Device
	prog   Program
	source ProgramSource
}

// CompileAndLink compiles both stages of src on dev and links them. A failure
// is logged and returned; no program is produced, so nothing can draw with a
// half-built program.
func CompileAndLink(dev Device, src ProgramSource) (*ShaderProgram, error) {
	if src.Language != dev.ShaderLanguage() {
		return nil, &ShaderError{Stage: "link", Log: "source is " + src.Language.String() +
			", device compiles " + dev.ShaderLanguage().String()}
	}
	prog, err := dev.CompileProgram(src)
	if err != nil {
		var se *ShaderError
		if errors.As(err, &se) {
			Logger().Error("kernelfx: shader program rejected",
				"stage", se.Stage, "language", src.Language.String(), "log", se.Log)
		} else {
			Logger().Error("kernelfx: shader program rejected", "err", err)
		}
		return nil, err
	}
	return &ShaderProgram{dev: dev, prog: prog, source: src}, nil
}

// LocateAttribute returns the location of a vertex attribute. A missing name
// is a *BindingError: the source and its caller disagree.
func (sp *ShaderProgram) LocateAttribute(name string) (int, error) {
	loc, err := sp.prog.AttributeLocation(name)
	if err != nil {
		return -1, missingBinding(err, BindingAttribute, name)
	}
	return loc, nil
}

// LocateUniform returns the location of a uniform. A missing name is a
// *BindingError.
func (sp *ShaderProgram) LocateUniform(name string) (int, error) {
	loc, err := sp.prog.UniformLocation(name)
	if err != nil {
		return -1, missingBinding(err, BindingUniform, name)
	}
	return loc, nil
}

// Program returns the device program handle.
func (sp *ShaderProgram) Program() Program { return sp.prog }

// Source returns the source the program was built from.
func (sp *ShaderProgram) Source() ProgramSource { return sp.source }

// Dispose releases the device program.
func (sp *ShaderProgram) Dispose() {
	if sp.prog != nil {
		sp.prog.Dispose()
		sp.prog = nil
	}
}

// missingBinding normalizes a device lookup failure into a *BindingError.
func missingBinding(err error, kind BindingKind, name string) error {
	var be *BindingError
	if errors.As(err, &be) {
		return be
	}
	return &BindingError{Kind: kind, Name: name}
}

// passBindings are the located inputs of the convolution program.
type passBindings struct {
	position     int
	texCoord     int
	kernel       int
	kernelWeight int
	viewportSize int
}

// locateBindings resolves every binding the convolution pass uses.
func locateBindings(sp *ShaderProgram) (passBindings, error) {
	var pb passBindings
	var err error
	b := sp.source.Bindings
	if pb.position, err = sp.LocateAttribute(b.Position); err != nil {
		return pb, err
	}
	if pb.texCoord, err = sp.LocateAttribute(b.TexCoord); err != nil {
		return pb, err
	}
	if pb.kernel, err = sp.LocateUniform(b.Kernel); err != nil {
		return pb, err
	}
	if pb.kernelWeight, err = sp.LocateUniform(b.KernelWeight); err != nil {
		return pb, err
	}
	if pb.viewportSize, err = sp.LocateUniform(b.ViewportSize); err != nil {
		return pb, err
	}
	return pb, nil
}
