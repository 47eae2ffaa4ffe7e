package models

import "time"

type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
	ModerationDeleted  ModerationStatus = "deleted"
)

// Variant suffixes embedded in object keys and therefore in image URLs.
// The indexing pipeline only consumes original-resolution variants.
const (
	OriginalImageSuffix    = "_original"
	PreviewImageSuffix     = "_preview"
	NSFWPreviewImageSuffix = "_nsfw_preview"
)

// Post is the durable record created by the ingestion saga. The four
// parallel slices (ImageURLs, ImageWidths, ImageHeights, Fingerprints)
// are always equal length and ordered: all variants of the first source
// image, original first, then the second, and so on.
type Post struct {
	ID               string
	Description      string
	NSFW             bool
	SourceLink       string
	ImageURLs        []string
	ImageWidths      []int
	ImageHeights     []int
	Fingerprints     []string
	Tags             []string
	Artists          []string
	AuthorID         string
	ModerationStatus ModerationStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UploadFile is one raw image as received from the caller.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// PostDraft is the caller-supplied submission. It is never persisted.
type PostDraft struct {
	Description      string
	Files            []UploadFile
	Tags             []string
	Artists          []string
	NSFW             bool
	SourceLink       string
	UploadID         string
	IgnoreDuplicates bool
}

type LabelKind string

const (
	LabelTag    LabelKind = "tag"
	LabelArtist LabelKind = "artist"
)

// Label is a tag or artist entity. PostCount is maintained exclusively
// through paired increment/decrement calls, never recomputed at write time.
type Label struct {
	Name        string
	PostCount   int
	Description string
	SocialLinks []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DuplicatePost is the subset of an existing post reported back when its
// fingerprint set intersects a new draft's.
type DuplicatePost struct {
	ID          string
	Description string
	ImageURLs   []string
}

// ObjectUpload is one encoded buffer bound for the object store.
type ObjectUpload struct {
	ObjectID    string
	ContentType string
	Data        []byte
}

// ObjectUploadResult reports the outcome for the upload at the same index,
// so the saga can compensate precisely for partial batch failures.
type ObjectUploadResult struct {
	URL string
	Err error
}

// IndexingJob is the fire-and-forget message handed to the similarity
// indexer. ImageURLs carries only original-resolution variants.
type IndexingJob struct {
	PostID    string   `json:"postId"`
	ImageURLs []string `json:"imageUrls"`
}
