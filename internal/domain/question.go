package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Answer encodings produced by the market-backed arbitrator.
var (
	AnswerNo      = common.Hash{}
	AnswerYes     = common.BigToHash(common.Big1)
	AnswerInvalid = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
)

// Template is a registered question shape. Questions reference it by ID.
type Template struct {
	ID        uint64         `json:"id"`
	Content   string         `json:"content"`
	CreatedBy common.Address `json:"created_by"`
	CreatedAt uint32         `json:"created_at"`
}

// Question is the oracle's record of a single question and its current
// leading answer.
type Question struct {
	ID                   common.Hash    `json:"id"`
	ContentHash          common.Hash    `json:"content_hash"`
	TemplateID           uint64         `json:"template_id"`
	Text                 string         `json:"text"`
	Asker                common.Address `json:"asker"`
	Arbitrator           common.Address `json:"arbitrator"`
	Nonce                *uint256.Int   `json:"nonce"`
	OpeningTS            uint32         `json:"opening_ts"`
	Timeout              uint32         `json:"timeout"`
	FinalizeTS           uint32         `json:"finalize_ts"`
	IsPendingArbitration bool           `json:"is_pending_arbitration"`
	Bounty               *uint256.Int   `json:"bounty"`
	BestAnswer           common.Hash    `json:"best_answer"`
	HistoryHash          common.Hash    `json:"history_hash"`
	Bond                 *uint256.Int   `json:"bond"`
	Claimed              bool           `json:"claimed"`
	CreatedAt            uint32         `json:"created_at"`
}

// Answered reports whether at least one answer, commitment or arbitration
// result has been recorded.
func (q *Question) Answered() bool {
	return q.HistoryHash != (common.Hash{})
}

// FinalizedAt reports whether the question is final at time now.
func (q *Question) FinalizedAt(now uint32) bool {
	return !q.IsPendingArbitration && q.FinalizeTS > 0 && now >= q.FinalizeTS
}

// Clone returns a deep copy safe to hand out of the ledger.
func (q *Question) Clone() Question {
	out := *q
	out.Nonce = cloneAmount(q.Nonce)
	out.Bounty = cloneAmount(q.Bounty)
	out.Bond = cloneAmount(q.Bond)
	return out
}

// AnswerEntry is one link of a question's answer history as observed from
// LogNewAnswer events.
type AnswerEntry struct {
	QuestionID      common.Hash    `json:"question_id"`
	Seq             int            `json:"seq"`
	PrevHistoryHash common.Hash    `json:"prev_history_hash"`
	HistoryHash     common.Hash    `json:"history_hash"`
	Answerer        common.Address `json:"answerer"`
	Bond            *uint256.Int   `json:"bond"`
	Answer          common.Hash    `json:"answer"`
	IsCommitment    bool           `json:"is_commitment"`
	Timestamp       uint32         `json:"timestamp"`
}

// Commitment is a hidden answer awaiting reveal.
type Commitment struct {
	ID             common.Hash `json:"id"`
	QuestionID     common.Hash `json:"question_id"`
	RevealTS       uint32      `json:"reveal_ts"`
	IsRevealed     bool        `json:"is_revealed"`
	RevealedAnswer common.Hash `json:"revealed_answer"`
}

// ClaimRecord is a caller-reconstructed answer history ordered newest first.
// HistoryHashes[i] is the history hash in force before entry i was added.
type ClaimRecord struct {
	HistoryHashes []common.Hash    `json:"history_hashes"`
	Answerers     []common.Address `json:"answerers"`
	Bonds         []*uint256.Int   `json:"bonds"`
	Answers       []common.Hash    `json:"answers"`
}

// Len returns the number of entries in the record.
func (c ClaimRecord) Len() int {
	return len(c.HistoryHashes)
}

// Validate checks the four arrays are non-empty and of equal length.
func (c ClaimRecord) Validate() error {
	n := len(c.HistoryHashes)
	if n == 0 {
		return ErrEmptyHistory
	}
	if len(c.Answerers) != n || len(c.Bonds) != n || len(c.Answers) != n {
		return ErrMismatchedArrays
	}
	return nil
}

// ClaimRecordFromEntries builds a newest-first claim record from entries
// ordered oldest first.
func ClaimRecordFromEntries(entries []AnswerEntry) ClaimRecord {
	n := len(entries)
	rec := ClaimRecord{
		HistoryHashes: make([]common.Hash, n),
		Answerers:     make([]common.Address, n),
		Bonds:         make([]*uint256.Int, n),
		Answers:       make([]common.Hash, n),
	}
	for i, e := range entries {
		j := n - 1 - i
		rec.HistoryHashes[j] = e.PrevHistoryHash
		rec.Answerers[j] = e.Answerer
		rec.Bonds[j] = cloneAmount(e.Bond)
		rec.Answers[j] = e.Answer
	}
	return rec
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
