package viewer

import "slices"

// selection is the ordered effect chain the user has toggled on.
type selection struct {
	names []string
}

// Toggle appends name if it is not selected and removes it otherwise. It
// reports whether name is selected afterwards.
func (s *selection) Toggle(name string) bool {
	if i := slices.Index(s.names, name); i >= 0 {
		s.names = slices.Delete(s.names, i, i+1)
		return false
	}
	s.names = append(s.names, name)
	return true
}

// Clear deselects everything.
func (s *selection) Clear() { s.names = s.names[:0] }

// Names returns the chain in selection order.
func (s *selection) Names() []string { return slices.Clone(s.names) }

// Set replaces the chain.
func (s *selection) Set(names []string) { s.names = slices.Clone(names) }

// slotsPerPage is the number of digit keys, 1 through 9 then 0.
const slotsPerPage = 10

// slotName returns the kernel bound to digit slot (0-9) on page, or "" when
// the slot is empty.
func slotName(names []string, page, slot int) string {
	i := page*slotsPerPage + slot
	if slot < 0 || slot >= slotsPerPage || i < 0 || i >= len(names) {
		return ""
	}
	return names[i]
}

// pageCount returns how many pages the kernel list spans, at least one.
func pageCount(n int) int {
	return max(1, (n+slotsPerPage-1)/slotsPerPage)
}
