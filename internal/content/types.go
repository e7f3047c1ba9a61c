package content

// Category classifies one non-text unit of a message payload.
type Category string

const (
	CategoryContact  Category = "contact"
	CategoryLocation Category = "location"
	CategoryDocument Category = "document"
	CategoryGIF      Category = "gif"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryImage    Category = "image"
	CategorySticker  Category = "sticker"
)

// Item is one classified unit of non-text payload. File-bearing categories
// carry the canonical storage URL; contact and location carry structured
// fields instead.
type Item struct {
	Category  Category `json:"category"`
	FileName  string   `json:"fileName,omitempty"`
	Extension string   `json:"fileExtension,omitempty"`
	MimeType  string   `json:"mimeType,omitempty"`
	FileSize  int64    `json:"fileSize,omitempty"`
	URL       string   `json:"url,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`

	PhoneNumber string `json:"phoneNumber,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`

	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
}

// IsFileBacked reports whether the item references an uploaded object.
func (i Item) IsFileBacked() bool {
	switch i.Category {
	case CategoryContact, CategoryLocation:
		return false
	}
	return true
}
