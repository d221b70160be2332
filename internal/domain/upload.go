package domain

import (
	"io"
	"time"
)

// SourceItem is a pending video in the configured Drive folder.
type SourceItem struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
}

// SourceContent is the streamed body of a fetched item. The caller closes Body.
type SourceContent struct {
	Body        io.ReadCloser
	ContentType string
	Name        string
}

// Metadata is the generated publish metadata for one video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type GenerationRequest struct {
	Context         string
	RecentTitles    []string
	IncludeChapters bool
}

type PublishRequest struct {
	Body              io.Reader
	Title             string
	Description       string
	Tags              []string
	Visibility        Visibility
	NotifySubscribers bool
}

// UploadRecord is one completed publish.
type UploadRecord struct {
	PublishID    string    `json:"videoId"`
	SourceItemID string    `json:"driveFileId"`
	SourceName   string    `json:"driveFileName"`
	ContentType  string    `json:"mimeType"`
	Title        string    `json:"title"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
