package kernelfx

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// KernelRegistry maps kernel names to kernels. It keeps every entry,
// "normal" included, but Lookup and Names only expose the user-selectable
// view, which never contains "normal".
type KernelRegistry struct {
	kernels map[string]Kernel
	order   []string
}

// NewKernelRegistry returns a registry seeded with a copy of the built-in
// kernels.
func NewKernelRegistry() *KernelRegistry {
	r := &KernelRegistry{
		kernels: make(map[string]Kernel, len(builtinKernels)),
		order:   make([]string, 0, len(builtinKernels)),
	}
	for _, nk := range builtinKernels {
		r.kernels[nk.name] = nk.kernel
		r.order = append(r.order, nk.name)
	}
	return r
}

// Register inserts or overwrites a kernel. An overwritten name keeps its
// listing position; new names are appended.
func (r *KernelRegistry) Register(name string, k Kernel) error {
	if name == "" {
		return ErrEmptyKernelName
	}
	if name == NormalKernel {
		return ErrReservedKernel
	}
	if _, ok := r.kernels[name]; !ok {
		r.order = append(r.order, name)
	}
	r.kernels[name] = k
	return nil
}

// Lookup returns the named user-selectable kernel.
func (r *KernelRegistry) Lookup(name string) (Kernel, bool) {
	if name == NormalKernel {
		return Kernel{}, false
	}
	k, ok := r.kernels[name]
	return k, ok
}

// Names returns the user-selectable kernel names in registration order.
func (r *KernelRegistry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if name == NormalKernel {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Len reports the number of user-selectable kernels.
func (r *KernelRegistry) Len() int {
	if _, ok := r.kernels[NormalKernel]; ok {
		return len(r.kernels) - 1
	}
	return len(r.kernels)
}

// identity returns the registry's internal identity kernel.
func (r *KernelRegistry) identity() Kernel {
	if k, ok := r.kernels[NormalKernel]; ok {
		return k
	}
	return IdentityKernel
}

// LoadJSON registers every kernel in a JSON object of the form
// {"name": [9 numbers], ...}. The whole document is validated before anything
// is registered, so a bad entry leaves the registry untouched.
func (r *KernelRegistry) LoadJSON(rd io.Reader) error {
	var raw map[string][]float32
	if err := json.NewDecoder(rd).Decode(&raw); err != nil {
		return fmt.Errorf("kernelfx: parse kernels: %w", err)
	}
	names := make([]string, 0, len(raw))
	for name, coeffs := range raw {
		if name == "" {
			return ErrEmptyKernelName
		}
		if name == NormalKernel {
			return ErrReservedKernel
		}
		if len(coeffs) != len(Kernel{}) {
			return fmt.Errorf("kernel %q has %d coefficients: %w", name, len(coeffs), ErrKernelSize)
		}
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		var k Kernel
		copy(k[:], raw[name])
		_ = r.Register(name, k)
	}
	return nil
}
