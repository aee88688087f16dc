package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// memBlobs is an in-memory object store.
type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	multipart int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	m.mu.Lock()
	m.multipart++
	m.mu.Unlock()
	return m.Put(ctx, path, data, "")
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("mem: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

type memAudit struct {
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

func settled(qid common.Hash) domain.SettledHistory {
	answerer := common.HexToAddress("0xa3")
	return domain.SettledHistory{
		Question: domain.Question{
			ID:     qid,
			Text:   "Will it rain?",
			Bond:   uint256.NewInt(0),
			Bounty: uint256.NewInt(0),
			Nonce:  uint256.NewInt(0),
		},
		Entries: []domain.AnswerEntry{{
			QuestionID: qid,
			Answerer:   answerer,
			Bond:       uint256.NewInt(321),
			Answer:     domain.AnswerYes,
		}},
		Payouts: []domain.ClaimData{{User: answerer, Amount: uint256.NewInt(321)}},
	}
}

func TestArchiverRoundTrip(t *testing.T) {
	blobs := newMemBlobs()
	audit := &memAudit{}
	a := NewArchiver(blobs, blobs, audit, "/history/")
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	qid := common.HexToHash("0x1234")
	path, err := a.Archive(context.Background(), settled(qid))
	require.NoError(t, err)
	assert.Equal(t, "history/"+qid.Hex()+".json", path)
	assert.Equal(t, []string{"archive.history"}, audit.events)

	got, err := a.Load(context.Background(), qid)
	require.NoError(t, err)
	assert.Equal(t, qid, got.Question.ID)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, uint256.NewInt(321), got.Entries[0].Bond)
	require.Len(t, got.Payouts, 1)
	assert.Equal(t, common.HexToAddress("0xa3"), got.Payouts[0].User)
	assert.Equal(t, a.now(), got.ArchivedAt)
	assert.Zero(t, blobs.multipart)
}

func TestArchiverLoadMissing(t *testing.T) {
	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, nil, "")
	_, err := a.Load(context.Background(), common.HexToHash("0x99"))
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, common.HexToHash("0x99").Hex()+".json", a.Path(common.HexToHash("0x99")))
}

func TestArchiverLargeHistoryUsesMultipart(t *testing.T) {
	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, nil, "h")

	h := settled(common.HexToHash("0x42"))
	h.Question.Text = strings.Repeat("x", multipartThreshold+1)
	_, err := a.Archive(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.multipart)
}

func TestArchiverIsWriteOnce(t *testing.T) {
	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, nil, "history")
	qid := common.HexToHash("0x77")

	_, err := a.Archive(context.Background(), settled(qid))
	require.NoError(t, err)
	path, err := a.Archive(context.Background(), settled(qid))
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, a.Path(qid), path)
}

func TestArchiverList(t *testing.T) {
	blobs := newMemBlobs()
	a := NewArchiver(blobs, blobs, nil, "history")
	ctx := context.Background()

	for _, id := range []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")} {
		_, err := a.Archive(ctx, settled(id))
		require.NoError(t, err)
	}
	// Foreign objects under the prefix are ignored.
	require.NoError(t, blobs.Put(ctx, "history/readme.txt", strings.NewReader("hi"), "text/plain"))
	require.NoError(t, blobs.Put(ctx, "other/"+common.HexToHash("0x03").Hex()+".json", strings.NewReader("{}"), "application/json"))

	ids, err := a.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}, ids)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://already", normaliseEndpoint("http://already", true))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("boom")))
}
