package models

import "time"

type PageMode string

const (
	PageUnlocked PageMode = "unlocked"
	PageLocked   PageMode = "locked"
)

// PageMetadata travels with a page's markup. SchemaVersion always describes
// the markup it is stored with.
type PageMetadata struct {
	Name          string    `json:"name"`
	Title         string    `json:"title"`
	Categories    []string  `json:"categories"`
	Pinned        bool      `json:"pinned"`
	ShowInAll     bool      `json:"showInAll"`
	CreatedAt     time.Time `json:"createdAt"`
	LastModified  time.Time `json:"lastModified"`
	SchemaVersion int       `json:"schemaVersion"`
	Mode          PageMode  `json:"mode"`
}

// Page is the stored row: metadata plus serialized markup, keyed by Name.
type Page struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Name          string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Title         string    `gorm:"size:512" json:"title"`
	Categories    []string  `gorm:"serializer:json;type:text" json:"categories"`
	Pinned        bool      `gorm:"not null;default:false" json:"pinned"`
	ShowInAll     bool      `gorm:"not null" json:"showInAll"`
	SchemaVersion int       `gorm:"not null;default:0" json:"schemaVersion"`
	Mode          PageMode  `gorm:"size:20;not null;default:unlocked" json:"mode"`
	Markup        string    `gorm:"type:text;not null" json:"markup"`
	CreatedAt     time.Time `json:"createdAt"`
	LastModified  time.Time `gorm:"not null" json:"lastModified"`
}

// Metadata returns a copy of the page's metadata.
func (p *Page) Metadata() PageMetadata {
	return PageMetadata{
		Name:          p.Name,
		Title:         p.Title,
		Categories:    append([]string(nil), p.Categories...),
		Pinned:        p.Pinned,
		ShowInAll:     p.ShowInAll,
		CreatedAt:     p.CreatedAt,
		LastModified:  p.LastModified,
		SchemaVersion: p.SchemaVersion,
		Mode:          p.Mode,
	}
}

// SetMetadata overwrites every metadata column; Name is the key and stays.
func (p *Page) SetMetadata(meta PageMetadata) {
	p.Title = meta.Title
	p.Categories = append([]string(nil), meta.Categories...)
	p.Pinned = meta.Pinned
	p.ShowInAll = meta.ShowInAll
	p.CreatedAt = meta.CreatedAt
	p.LastModified = meta.LastModified
	p.SchemaVersion = meta.SchemaVersion
	p.Mode = meta.Mode
}

// PageView is a page as handed to callers: current markup plus metadata.
type PageView struct {
	Markup   string       `json:"markup"`
	Metadata PageMetadata `json:"metadata"`
}
