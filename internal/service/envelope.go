package service

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// Channel and stream names used on the signal bus.
const (
	ChannelPrefix  = "ch:realitio:"
	ChannelPattern = ChannelPrefix + "*"
	EventStream    = "events:realitio"
)

// Envelope is the wire form of a published event. When the publisher has an
// operator key, Signature is its personal_sign signature over Event.
type Envelope struct {
	Event     json.RawMessage `json:"event"`
	Signer    string          `json:"signer,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// SealEvent encodes ev as an envelope. signer may be nil.
func SealEvent(ev domain.Event, signer *crypto.Signer) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("service: encode %s: %w", ev.Type, err)
	}
	env := Envelope{Event: body}
	if signer != nil {
		sig, err := signer.SignPayload(body)
		if err != nil {
			return nil, fmt.Errorf("service: sign %s: %w", ev.Type, err)
		}
		env.Signer = signer.Address().Hex()
		env.Signature = sig
	}
	return json.Marshal(env)
}

// OpenEnvelope decodes a published event. If the envelope is signed the
// signature must recover to the claimed signer, whose address is returned.
// Unsigned envelopes return the zero address.
func OpenEnvelope(payload []byte) (domain.Event, common.Address, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Event{}, common.Address{}, fmt.Errorf("service: decode envelope: %w", err)
	}

	var signer common.Address
	if env.Signature != "" {
		got, err := crypto.RecoverPayloadSigner(env.Event, env.Signature)
		if err != nil {
			return domain.Event{}, common.Address{}, fmt.Errorf("service: verify envelope: %w", err)
		}
		if !common.IsHexAddress(env.Signer) || got != common.HexToAddress(env.Signer) {
			return domain.Event{}, common.Address{}, fmt.Errorf("service: envelope signed by %s, claims %s: %w", got.Hex(), env.Signer, domain.ErrUnauthorized)
		}
		signer = got
	}

	ev, err := DecodeEvent(env.Event)
	if err != nil {
		return domain.Event{}, common.Address{}, err
	}
	return ev, signer, nil
}

// DecodeEvent decodes a JSON event, restoring the typed payload for known
// event types.
func DecodeEvent(body []byte) (domain.Event, error) {
	var raw struct {
		domain.Event
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Event{}, fmt.Errorf("service: decode event: %w", err)
	}
	ev := raw.Event

	data, err := decodeData(ev.Type, raw.Data)
	if err != nil {
		return domain.Event{}, fmt.Errorf("service: decode %s payload: %w", ev.Type, err)
	}
	ev.Data = data
	return ev, nil
}

var payloadDecoders = map[domain.EventType]func(json.RawMessage) (any, error){
	domain.EventNewTemplate:                decodeAs[domain.NewTemplateData],
	domain.EventNewQuestion:                decodeAs[domain.NewQuestionData],
	domain.EventFundAnswerBounty:           decodeAs[domain.FundAnswerBountyData],
	domain.EventNewAnswer:                  decodeAs[domain.NewAnswerData],
	domain.EventAnswerReveal:               decodeAs[domain.AnswerRevealData],
	domain.EventNotifyOfArbitrationRequest: decodeAs[domain.ArbitrationRequestData],
	domain.EventRequestArbitration:         decodeAs[domain.ArbitrationRequestData],
	domain.EventFinalize:                   decodeAs[domain.FinalizeData],
	domain.EventClaim:                      decodeAs[domain.ClaimData],
	domain.EventWithdraw:                   decodeAs[domain.WithdrawData],
	domain.EventMarketCreated:              decodeAs[domain.MarketCreatedData],
	domain.EventAnswerReported:             decodeAs[domain.AnswerReportedData],
	domain.EventInitialReport:              decodeAs[domain.MarketReportData],
	domain.EventMarketFinalized:            decodeAs[domain.MarketReportData],
}

// decodeAs returns the payload as a T value, the form the contracts emit.
func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeData(typ domain.EventType, raw json.RawMessage) (any, error) {
	if dec, ok := payloadDecoders[typ]; ok {
		return dec(raw)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v any
	err := json.Unmarshal(raw, &v)
	return v, err
}
