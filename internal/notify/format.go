package notify

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

var eventTitles = map[domain.EventType]string{
	domain.EventNewQuestion:                "New question",
	domain.EventNewAnswer:                  "New answer",
	domain.EventNotifyOfArbitrationRequest: "Arbitration requested",
	domain.EventRequestArbitration:         "Arbitration fee paid",
	domain.EventMarketCreated:              "Arbitration market created",
	domain.EventAnswerReported:             "Arbitration answer reported",
	domain.EventFinalize:                   "Question finalized by arbitrator",
	domain.EventClaim:                      "Winnings claimed",
	domain.EventWithdraw:                   "Balance withdrawn",
	domain.EventInitialReport:              "Market reported",
	domain.EventMarketFinalized:            "Market finalized",
}

// FormatEvent renders an event as a notification title and a plain-text body
// of key: value lines.
func FormatEvent(ev domain.Event) (title, message string) {
	title = eventTitles[ev.Type]
	if title == "" {
		title = string(ev.Type)
	}

	var b strings.Builder
	line := func(k, v string) {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	if ev.QuestionID != (common.Hash{}) {
		line("question", ev.QuestionID.Hex())
	}

	switch d := ev.Data.(type) {
	case domain.NewQuestionData:
		line("asker", d.User.Hex())
		line("text", d.Question)
		line("timeout", fmt.Sprintf("%ds", d.Timeout))
	case domain.NewAnswerData:
		line("answerer", d.User.Hex())
		line("bond", d.Bond.Dec())
		if d.IsCommitment {
			line("answer", "commitment")
		} else {
			line("answer", d.Answer.Hex())
		}
	case domain.ArbitrationRequestData:
		line("requester", d.Requester.Hex())
		line("max_previous", d.MaxPrevious.Dec())
		if d.Fee != nil {
			line("fee", d.Fee.Dec())
		}
	case domain.MarketCreatedData:
		line("market", d.Market.Hex())
		line("owner", d.Owner.Hex())
	case domain.AnswerReportedData:
		line("market", d.Market.Hex())
		line("answer", d.Answer.Hex())
		line("fee_to", d.Owner.Hex())
	case domain.FinalizeData:
		line("answer", d.Answer.Hex())
		line("payee", d.Payee.Hex())
	case domain.ClaimData:
		line("user", d.User.Hex())
		line("amount", d.Amount.Dec())
	case domain.WithdrawData:
		line("user", d.User.Hex())
		line("amount", d.Amount.Dec())
	case domain.MarketReportData:
		line("market", d.Market.Hex())
		line("invalid", fmt.Sprint(d.Invalid))
	}
	return title, strings.TrimRight(b.String(), "\n")
}
