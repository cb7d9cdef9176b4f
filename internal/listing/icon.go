package listing

import "fmt"

// Icon describes a marker icon in pixel units.
type Icon struct {
	ClassName   string `json:"class_name"`
	SVG         string `json:"svg"`
	Size        [2]int `json:"size"`
	Anchor      [2]int `json:"anchor"`
	PopupAnchor [2]int `json:"popup_anchor"`
}

const houseSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24">` +
	`<path d="M12 3 2 12h3v8h5v-6h4v6h5v-8h3z" fill="%s" stroke="#ffffff" stroke-width="1.5" stroke-linejoin="round"/>` +
	`</svg>`

// HouseIcon returns the house-shaped marker icon for a status.
func HouseIcon(s Status) Icon {
	return Icon{
		ClassName:   "property-marker property-marker--" + s.Slug(),
		SVG:         fmt.Sprintf(houseSVG, s.Color()),
		Size:        [2]int{32, 32},
		Anchor:      [2]int{16, 32},
		PopupAnchor: [2]int{0, -28},
	}
}

// PinIcon is the icon for the user-placed reference marker.
func PinIcon() Icon {
	return Icon{
		ClassName: "user-marker",
		SVG: `<svg xmlns="http://www.w3.org/2000/svg" width="28" height="28" viewBox="0 0 24 24">` +
			`<path d="M12 2a7 7 0 0 0-7 7c0 5.25 7 13 7 13s7-7.75 7-13a7 7 0 0 0-7-7z" fill="#7c3aed" stroke="#ffffff" stroke-width="1.5"/>` +
			`<circle cx="12" cy="9" r="2.5" fill="#ffffff"/></svg>`,
		Size:        [2]int{28, 28},
		Anchor:      [2]int{14, 28},
		PopupAnchor: [2]int{0, -24},
	}
}
