package domain

import (
	"context"
	"time"
)

// Collection groups recordings under a single owner.
type Collection struct {
	BaseModel
	Slug       string      `gorm:"size:100;not null;index:idx_coll_owner_slug,unique" json:"id"`
	OwnerID    uint        `gorm:"not null;index:idx_coll_owner_slug,unique" json:"-"`
	Title      string      `gorm:"size:255;not null" json:"title"`
	Desc       string      `gorm:"type:text" json:"desc"`
	Public     bool        `gorm:"not null;default:false" json:"public"`
	Synthetic  bool        `gorm:"not null;default:false" json:"-"`
	Recordings []Recording `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"recordings"`
}

// Recording is one capture session inside a collection.
type Recording struct {
	BaseModel
	Slug         string `gorm:"size:100;not null" json:"id"`
	CollectionID uint   `gorm:"not null;index" json:"-"`
	Title        string `gorm:"size:255" json:"title"`
	Size         int64  `gorm:"not null;default:0" json:"size"`
	Pages        []Page `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE" json:"pages"`
}

// Page is a single captured URL within a recording.
type Page struct {
	BaseModel
	RecordingID uint      `gorm:"not null;index" json:"-"`
	URL         string    `gorm:"size:2048;not null" json:"url"`
	Title       string    `gorm:"size:512" json:"title"`
	Timestamp   time.Time `json:"timestamp"`
}

// CollectionRepository defines the data access interface for collections and
// their nested recordings and pages.
type CollectionRepository interface {
	Create(ctx context.Context, coll *Collection) error
	ListByOwner(ctx context.Context, ownerID uint, includeRecs bool) ([]Collection, error)
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID uint) error
}

// CollectionService defines the business operations the user manager needs
// from the collection side.
type CollectionService interface {
	CreateCollection(ctx context.Context, ownerID uint, slug, title, desc string, public, synthetic bool) (*Collection, error)
	ListCollections(ctx context.Context, ownerID uint, includeRecs bool) ([]Collection, error)
	NumCollections(ctx context.Context, ownerID uint) (int64, error)
	DeleteUserCollections(ctx context.Context, ownerID uint) error
}
