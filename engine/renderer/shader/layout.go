package shader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// ReflectedBinding is a resource declaration recovered from compiled shader source.
type ReflectedBinding struct {
	Group   uint32
	Binding uint32
	Name    string
	Kind    BindingKind
	// AccessKnown is false when the source of the reflection cannot tell read-only
	// storage from read-write storage.
	AccessKnown bool
}

func sortBindings(b []Binding) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Group != b[j].Group {
			return b[i].Group < b[j].Group
		}
		return b[i].Index < b[j].Index
	})
}

func sortReflected(r []ReflectedBinding) {
	sort.Slice(r, func(i, j int) bool {
		if r[i].Group != r[j].Group {
			return r[i].Group < r[j].Group
		}
		return r[i].Binding < r[j].Binding
	})
}

// LayoutDescriptors builds bind group layout descriptors from CPU-side declarations.
//
// Parameters:
//   - bindings: the declarations, in any order
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group, entries sorted
//     by binding
func LayoutDescriptors(bindings []Binding) map[int]wgpu.BindGroupLayoutDescriptor {
	sorted := append([]Binding(nil), bindings...)
	sortBindings(sorted)
	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, b := range sorted {
		d := out[int(b.Group)]
		d.Entries = append(d.Entries, b.LayoutEntry())
		out[int(b.Group)] = d
	}
	return out
}

// ValidateLayout checks that the CPU-side declarations describe exactly the bindings
// the shader declares: same slots, same kinds. Storage access is compared only when
// the reflection recorded it.
//
// Parameters:
//   - cpu: the declarations the layouts are built from
//   - reflected: the declarations recovered from the shader
//
// Returns:
//   - error: wraps ErrBindingMismatch listing every disagreement, nil when they agree
func ValidateLayout(cpu []Binding, reflected []ReflectedBinding) error {
	bySlot := make(map[[2]uint32]ReflectedBinding, len(reflected))
	for _, r := range reflected {
		bySlot[[2]uint32{r.Group, r.Binding}] = r
	}
	var problems []string
	seen := make(map[[2]uint32]bool, len(cpu))
	for _, b := range cpu {
		slot := [2]uint32{b.Group, b.Index}
		seen[slot] = true
		r, ok := bySlot[slot]
		if !ok {
			problems = append(problems, fmt.Sprintf("(%d,%d) %s declared on the CPU but absent from the shader", b.Group, b.Index, b.Name))
			continue
		}
		want, got := b.Kind, r.Kind
		if !r.AccessKnown {
			want, got = want.class(), got.class()
		}
		if want != got {
			problems = append(problems, fmt.Sprintf("(%d,%d) %s is %s on the CPU but %s in the shader", b.Group, b.Index, b.Name, b.Kind, r.Kind))
		}
	}
	for _, r := range reflected {
		if !seen[[2]uint32{r.Group, r.Binding}] {
			problems = append(problems, fmt.Sprintf("(%d,%d) %s declared by the shader but missing from the CPU layout", r.Group, r.Binding, r.Name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrBindingMismatch, strings.Join(problems, "; "))
	}
	return nil
}

// MergeLayouts combines bind group layouts from multiple shader stages. Entries
// present in more than one stage get their visibility flags ORed together.
//
// Parameters:
//   - layouts: layout maps from each stage, keyed by group index
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged layouts keyed by group index
func MergeLayouts(layouts ...map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, layout := range layouts {
		for group, desc := range layout {
			existing, ok := merged[group]
			if !ok {
				entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
				copy(entries, desc.Entries)
				merged[group] = wgpu.BindGroupLayoutDescriptor{
					Label:   desc.Label,
					Entries: entries,
				}
				continue
			}
			for _, entry := range desc.Entries {
				found := false
				for i := range existing.Entries {
					if existing.Entries[i].Binding == entry.Binding {
						existing.Entries[i].Visibility |= entry.Visibility
						found = true
						break
					}
				}
				if !found {
					existing.Entries = append(existing.Entries, entry)
				}
			}
			sort.Slice(existing.Entries, func(i, j int) bool {
				return existing.Entries[i].Binding < existing.Entries[j].Binding
			})
			merged[group] = existing
		}
	}
	return merged
}
