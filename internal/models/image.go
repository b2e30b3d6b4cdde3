package models

// Text colours an image can be personalised with.
const (
	ColorBlack = "black"
	ColorWhite = "white"

	DefaultColor = ColorBlack
)

// ValidColor reports whether c is one of the supported text colours.
func ValidColor(c string) bool {
	return c == ColorBlack || c == ColorWhite
}

// GalleryImage represents an image attendees can choose for their badge.
type GalleryImage struct {
	ID                 int64  `json:"id"`
	Label              string `json:"image_label"`
	Data               []byte `json:"-"`
	MimeType           string `json:"image_mime_type"`
	Color              string `json:"image_color"`
	Font               string `json:"image_font"`
	SecretCode         string `json:"-"`
	RequiresSecretCode bool   `json:"requires_secret_code"`
	DisplayOrder       int    `json:"display_order"`
}

// Locked reports whether the image needs a secret code to be selected.
func (i *GalleryImage) Locked() bool {
	return i.RequiresSecretCode && i.SecretCode != ""
}
