package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// multipartThreshold is the encoded size above which an archive is uploaded
// with the multipart manager instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// Archiver implements domain.HistoryArchive. Each settled question becomes one
// JSON document keyed by question id:
//
//	<prefix>/<question id>.json
//
// An optional audit store records every upload.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore, prefix string) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		audit:  audit,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive uploads h and returns the object path. ArchivedAt is stamped when
// unset. An existing archive is never overwritten.
func (a *Archiver) Archive(ctx context.Context, h domain.SettledHistory) (string, error) {
	path := a.Path(h.Question.ID)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s: %w", h.Question.ID.Hex(), err)
	}
	if exists {
		return path, fmt.Errorf("s3blob: archive %s: %w", h.Question.ID.Hex(), domain.ErrAlreadyExists)
	}

	if h.ArchivedAt.IsZero() {
		h.ArchivedAt = a.now().UTC()
	}

	buf, err := marshalJSON(h)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", h.Question.ID.Hex(), err)
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", h.Question.ID.Hex(), err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.history", map[string]any{
			"path":        path,
			"question_id": h.Question.ID.Hex(),
			"entries":     len(h.Entries),
			"payouts":     len(h.Payouts),
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive %s audit log: %w", h.Question.ID.Hex(), err)
		}
	}

	return path, nil
}

// Load reads back the archived history of a question. It returns
// domain.ErrNotFound when nothing was archived.
func (a *Archiver) Load(ctx context.Context, questionID common.Hash) (domain.SettledHistory, error) {
	body, err := a.reader.Get(ctx, a.Path(questionID))
	if err != nil {
		return domain.SettledHistory{}, err
	}
	defer body.Close()

	var h domain.SettledHistory
	if err := json.NewDecoder(body).Decode(&h); err != nil {
		return domain.SettledHistory{}, fmt.Errorf("s3blob: decode archive %s: %w", questionID.Hex(), err)
	}
	return h, nil
}

// List returns the ids of every archived question.
func (a *Archiver) List(ctx context.Context) ([]common.Hash, error) {
	prefix := ""
	if a.prefix != "" {
		prefix = a.prefix + "/"
	}
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]common.Hash, 0, len(infos))
	for _, info := range infos {
		name, ok := strings.CutSuffix(strings.TrimPrefix(info.Path, prefix), ".json")
		if !ok || len(name) != 2+2*common.HashLength || strings.Contains(name, "/") {
			continue
		}
		ids = append(ids, common.HexToHash(name))
	}
	return ids, nil
}

// Path returns the object key for a question's archive.
func (a *Archiver) Path(questionID common.Hash) string {
	name := questionID.Hex() + ".json"
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// marshalJSON encodes v compactly without HTML escaping.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.HistoryArchive = (*Archiver)(nil)
