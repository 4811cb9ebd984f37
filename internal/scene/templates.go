package scene

// templates.go holds the richer per-noun object templates used when an
// addition names a recognized accessory, and the generic fallback used for
// anything else. New accessory templates are added as table rows.

import "strings"

// objectTemplates maps a canonical object noun to its descriptive record.
var objectTemplates = map[string]Object{
	"hat": {
		Description:  "a stylish hat",
		Location:     "on top of the head",
		RelativeSize: "proportional to the head",
		Orientation:  "tilted slightly",
	},
	"sunglasses": {
		Description:  "a pair of dark sunglasses",
		Location:     "over the eyes",
		RelativeSize: "fitted to the face",
		ShapeColor:   "black frames with dark lenses",
	},
	"cigar": {
		Description: "a lit cigar with a wisp of smoke",
		Location:    "in the corner of the mouth",
		Texture:     "rolled tobacco leaf",
		Count:       "1",
	},
	"teeth": {
		Description: "a set of prominent teeth",
		Location:    "in the mouth",
		ShapeColor:  "white",
	},
	"snake": {
		Description: "a coiled snake",
		Location:    "wrapped around the subject",
		Texture:     "scaled",
		Orientation: "head raised",
	},
	"chain": {
		Description: "a thick chain necklace",
		Location:    "around the neck",
		ShapeColor:  "gold",
		Texture:     "metallic links",
	},
	"crown": {
		Description:  "an ornate crown",
		Location:     "on top of the head",
		ShapeColor:   "gold with jewels",
		RelativeSize: "proportional to the head",
	},
	"bandana": {
		Description: "a folded bandana",
		Location:    "tied around the head",
		Texture:     "patterned cloth",
	},
	"wings": {
		Description:  "a pair of spread wings",
		Location:     "extending from the back",
		RelativeSize: "large",
		Count:        "2",
	},
}

// templateFor returns the descriptive record for an object noun, falling
// back to a generic record built from the noun itself.
func templateFor(object, location string) Object {
	key := strings.ToLower(strings.TrimSpace(object))
	tmpl, ok := objectTemplates[key]
	if !ok {
		tmpl = Object{
			Description: "a " + key,
			Count:       "1",
		}
	}
	if location != "" {
		tmpl.Location = location
	}
	return tmpl
}
