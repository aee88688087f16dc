package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventType names an event emitted by the oracle or the arbitrator.
type EventType string

const (
	EventNewTemplate                EventType = "LogNewTemplate"
	EventNewQuestion                EventType = "LogNewQuestion"
	EventFundAnswerBounty           EventType = "LogFundAnswerBounty"
	EventNewAnswer                  EventType = "LogNewAnswer"
	EventAnswerReveal               EventType = "LogAnswerReveal"
	EventNotifyOfArbitrationRequest EventType = "LogNotifyOfArbitrationRequest"
	EventFinalize                   EventType = "LogFinalize"
	EventClaim                      EventType = "LogClaim"
	EventWithdraw                   EventType = "LogWithdraw"
	EventRequestArbitration         EventType = "LogRequestArbitration"
	EventMarketCreated              EventType = "LogMarketCreated"
	EventAnswerReported             EventType = "LogAnswerReported"
	EventInitialReport              EventType = "LogInitialReport"
	EventMarketFinalized            EventType = "LogMarketFinalized"
)

// Event is a log entry produced by a successful call.
type Event struct {
	Type       EventType      `json:"type"`
	Emitter    common.Address `json:"emitter"`
	QuestionID common.Hash    `json:"question_id"`
	Timestamp  uint32         `json:"timestamp"`
	Data       any            `json:"data"`
}

// NewTemplateData is the payload of EventNewTemplate.
type NewTemplateData struct {
	TemplateID uint64         `json:"template_id"`
	User       common.Address `json:"user"`
	Content    string         `json:"content"`
}

// NewQuestionData is the payload of EventNewQuestion.
type NewQuestionData struct {
	User        common.Address `json:"user"`
	TemplateID  uint64         `json:"template_id"`
	Question    string         `json:"question"`
	ContentHash common.Hash    `json:"content_hash"`
	Arbitrator  common.Address `json:"arbitrator"`
	Timeout     uint32         `json:"timeout"`
	OpeningTS   uint32         `json:"opening_ts"`
	Nonce       *uint256.Int   `json:"nonce"`
	Bounty      *uint256.Int   `json:"bounty"`
}

// FundAnswerBountyData is the payload of EventFundAnswerBounty.
type FundAnswerBountyData struct {
	Amount *uint256.Int   `json:"amount"`
	Bounty *uint256.Int   `json:"bounty"`
	User   common.Address `json:"user"`
}

// NewAnswerData is the payload of EventNewAnswer. It carries everything an
// indexer needs to rebuild a claim record.
type NewAnswerData struct {
	Answer          common.Hash    `json:"answer"`
	User            common.Address `json:"user"`
	PrevHistoryHash common.Hash    `json:"prev_history_hash"`
	HistoryHash     common.Hash    `json:"history_hash"`
	Bond            *uint256.Int   `json:"bond"`
	IsCommitment    bool           `json:"is_commitment"`
}

// AnswerRevealData is the payload of EventAnswerReveal.
type AnswerRevealData struct {
	User         common.Address `json:"user"`
	AnswerHash   common.Hash    `json:"answer_hash"`
	CommitmentID common.Hash    `json:"commitment_id"`
	Nonce        *uint256.Int   `json:"nonce"`
	Bond         *uint256.Int   `json:"bond"`
	Answer       common.Hash    `json:"answer"`
}

// ArbitrationRequestData is the payload of EventNotifyOfArbitrationRequest
// and EventRequestArbitration.
type ArbitrationRequestData struct {
	Requester   common.Address `json:"requester"`
	MaxPrevious *uint256.Int   `json:"max_previous"`
	Fee         *uint256.Int   `json:"fee,omitempty"`
}

// FinalizeData is the payload of EventFinalize.
type FinalizeData struct {
	Answer common.Hash    `json:"answer"`
	Payee  common.Address `json:"payee"`
}

// ClaimData is the payload of EventClaim.
type ClaimData struct {
	User   common.Address `json:"user"`
	Amount *uint256.Int   `json:"amount"`
}

// WithdrawData is the payload of EventWithdraw.
type WithdrawData struct {
	User   common.Address `json:"user"`
	Amount *uint256.Int   `json:"amount"`
}

// MarketCreatedData is the payload of EventMarketCreated.
type MarketCreatedData struct {
	Market             common.Address `json:"market"`
	Owner              common.Address `json:"owner"`
	DesignatedReporter common.Address `json:"designated_reporter"`
	ValidityBond       *uint256.Int   `json:"validity_bond"`
}

// AnswerReportedData is the payload of EventAnswerReported.
type AnswerReportedData struct {
	Market common.Address `json:"market"`
	Answer common.Hash    `json:"answer"`
	Owner  common.Address `json:"owner"`
	Fee    *uint256.Int   `json:"fee"`
}

// MarketReportData is the payload of EventInitialReport and
// EventMarketFinalized.
type MarketReportData struct {
	Market           common.Address `json:"market"`
	Reporter         common.Address `json:"reporter,omitempty"`
	PayoutNumerators []*uint256.Int `json:"payout_numerators"`
	Invalid          bool           `json:"invalid"`
}
