// Package scene models the structured prompt, the JSON scene descriptor
// (objects + background + description) submitted to the external generation
// service, and applies resolved edit operations to it.
package scene

import "strings"

// Prompt is the scene descriptor for one design.
type Prompt struct {
	ShortDescription string   `json:"short_description"`
	Objects          []Object `json:"objects"`
	Background       string   `json:"background"`
	Style            string   `json:"style,omitempty"`

	// Metadata is carried through the round-trip untouched.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Object is one descriptive object record. The fields are a free-form
// descriptor bag the classifier fills in; nothing downstream requires a
// stricter schema.
type Object struct {
	Description  string `json:"description"`
	Location     string `json:"location,omitempty"`
	RelativeSize string `json:"relative_size,omitempty"`
	ShapeColor   string `json:"shape_color,omitempty"`
	Texture      string `json:"texture,omitempty"`
	Count        string `json:"count,omitempty"`
	Orientation  string `json:"orientation,omitempty"`
}

// Clone deep-copies the prompt so mutation never aliases the cached
// descriptor.
func (p Prompt) Clone() Prompt {
	cp := p
	cp.Objects = append([]Object(nil), p.Objects...)
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// matchesTarget reports whether this object record is about the target:
// its description or color field mentions the target word.
func (o Object) matchesTarget(target string) bool {
	t := strings.ToLower(target)
	return strings.Contains(strings.ToLower(o.Description), t) ||
		strings.Contains(strings.ToLower(o.ShapeColor), t)
}
