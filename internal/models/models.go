package models

import (
	"fmt"
	"time"
)

// Category is the closed set of attachment kinds a bundle can hold.
type Category uint8

const (
	CategoryPhoto Category = iota
	CategoryVideo
	CategoryAudio
	CategoryVoice
	CategoryDocument
	CategoryAnimation
	CategorySticker

	categoryCount
)

// NumCategories sizes lookup tables indexed by Category.
const NumCategories = int(categoryCount)

var categoryNames = [NumCategories]string{
	CategoryPhoto:     "photo",
	CategoryVideo:     "video",
	CategoryAudio:     "audio",
	CategoryVoice:     "voice",
	CategoryDocument:  "document",
	CategoryAnimation: "animation",
	CategorySticker:   "sticker",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, NumCategories)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c < categoryCount
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory maps the text form back to a Category.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return Category(c), nil
		}
	}
	return 0, fmt.Errorf("unknown attachment category %q", s)
}

// MarshalText encodes the category by name
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid attachment category %d", uint8(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText decodes a category name
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HasCaption reports whether captions are kept for this category.
func (c Category) HasCaption() bool {
	return c == CategoryPhoto || c == CategoryVideo
}

// Attachment is one classified media item. FileID is the transport's opaque
// content reference and is resent as-is on delivery.
type Attachment struct {
	Type    Category `json:"type"`
	FileID  string   `json:"file_id"`
	Caption string   `json:"caption,omitempty"`
}

// Bundle is a committed, immutable set of attachments
type Bundle struct {
	Token       string       `json:"token"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

// DeliveryRecord lists the messages a redemption produced in one chat.
type DeliveryRecord struct {
	ChatID     int64
	MessageIDs []int
	Token      string
}

// CloneAttachments returns a copy that shares no backing array with in.
func CloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
