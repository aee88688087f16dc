package domain

import (
	"context"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SettledHistory is the archived record of a claimed question: its final
// snapshot, the full answer log oldest first, and the payouts it produced.
type SettledHistory struct {
	Question   Question      `json:"question"`
	Entries    []AnswerEntry `json:"entries"`
	Payouts    []ClaimData   `json:"payouts"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// HistoryArchive stores settled histories in object storage. Archives are
// write-once: a second Archive for the same question fails with
// ErrAlreadyExists.
type HistoryArchive interface {
	Archive(ctx context.Context, h SettledHistory) (path string, err error)
	Load(ctx context.Context, questionID common.Hash) (SettledHistory, error)
	List(ctx context.Context) ([]common.Hash, error)
}
