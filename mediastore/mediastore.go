// Package mediastore é a fronteira estreita com o serviço externo de mídia/CDN.
//
// O gateway só lista e envia fotos; transformação, cache e metadados ficam no fornecedor.
package mediastore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUpstream envolve qualquer falha do fornecedor. Handlers respondem 500 genérico.
var ErrUpstream = errors.New("mediastore: upstream error")

type Photo struct {
	PublicID  string    `json:"public_id"`
	SecureURL string    `json:"secure_url"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Caption   string    `json:"caption,omitempty"`
}

type Page struct {
	Photos     []Photo
	NextCursor string
	TotalCount int
}

type ListOptions struct {
	NextCursor string
	Limit      int
	Folder     string
}

type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Folder      string
	Caption     string
	PublicID    string
}

type Lister interface {
	GetPhotos(ctx context.Context, opts ListOptions) (Page, error)
}

type Uploader interface {
	Upload(ctx context.Context, in UploadInput) (Photo, error)
}

type Store interface {
	Lister
	Uploader
}
