package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("realitio: answer: %w", ErrBondTooLow), KindValidation},
		{fmt.Errorf("wrapped twice: %w", fmt.Errorf("inner: %w", ErrQuestionFrozen)), KindState},
		{ErrInsufficientFee, KindResource},
		{ErrHistoryMismatch, KindIntegrity},
		{ErrNotFound, KindNotFound},
		{errors.New("disk on fire"), KindInternal},
		{nil, KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "not_found", KindNotFound.String())
}

func TestFinalizedAt(t *testing.T) {
	q := Question{FinalizeTS: 100}
	assert.False(t, q.FinalizedAt(99))
	assert.True(t, q.FinalizedAt(100))

	q.IsPendingArbitration = true
	assert.False(t, q.FinalizedAt(200))

	unanswered := Question{}
	assert.False(t, unanswered.FinalizedAt(200))
}

func TestClaimRecordFromEntriesReversesOrder(t *testing.T) {
	h1 := common.HexToHash("0x01")
	h2 := common.HexToHash("0x02")
	entries := []AnswerEntry{
		{PrevHistoryHash: common.Hash{}, HistoryHash: h1, Answerer: common.HexToAddress("0xa1"), Bond: uint256.NewInt(10), Answer: AnswerYes},
		{PrevHistoryHash: h1, HistoryHash: h2, Answerer: common.HexToAddress("0xa2"), Bond: uint256.NewInt(20), Answer: AnswerNo},
	}

	rec := ClaimRecordFromEntries(entries)
	require.NoError(t, rec.Validate())
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, h1, rec.HistoryHashes[0])
	assert.Equal(t, common.Hash{}, rec.HistoryHashes[1])
	assert.Equal(t, common.HexToAddress("0xa2"), rec.Answerers[0])
	assert.Equal(t, "20", rec.Bonds[0].Dec())
	assert.Equal(t, AnswerYes, rec.Answers[1])

	// Bonds are copied out.
	entries[1].Bond.SetUint64(99)
	assert.Equal(t, "20", rec.Bonds[0].Dec())
}

func TestClaimRecordValidate(t *testing.T) {
	require.ErrorIs(t, ClaimRecord{}.Validate(), ErrEmptyHistory)

	rec := ClaimRecord{
		HistoryHashes: []common.Hash{{}},
		Answerers:     []common.Address{{}},
		Bonds:         []*uint256.Int{uint256.NewInt(1)},
	}
	require.ErrorIs(t, rec.Validate(), ErrMismatchedArrays)
}
