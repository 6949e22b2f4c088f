package codec

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
)

// Envelope is the wire container of a signed episode command.
//
// Ledger transactions are opaque bytes; commands travel as JSON with a fixed
// field order. The signature covers the canonical sign bytes (see SignBytes),
// not the JSON text, so re-encoding a command never invalidates it.
type Envelope struct {
	EpisodeID string          `json:"episodeId"`
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value,omitempty"`
	Issuer    []byte          `json:"issuer"` // base64 ed25519 public key (32 bytes)
	Sig       []byte          `json:"sig"`    // base64 ed25519 signature (64 bytes)
}

const (
	TypeInit          = "init"
	TypeDealRequest   = "deal_request"
	TypeShuffleReveal = "shuffle_reveal"
	TypeHit           = "hit"
	TypeStand         = "stand"
)

// HashSize is the length of commitments, seeds and episode ids (raw bytes).
const HashSize = 32

// Payload is one of Init, DealRequest, ShuffleReveal, Hit or Stand.
type Payload interface {
	Type() string

	validate() error
	canonical() []byte
}

// Command is an authenticated, decoded envelope.
type Command struct {
	EpisodeID string
	Seq       uint64
	Issuer    ed25519.PublicKey
	Payload   Payload
}

func (c Command) Type() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Type()
}

// ---- Payloads ----

// Init opens an episode. The issuer becomes the dealer and Opponent the player;
// Nonce is the value the episode id was derived from.
type Init struct {
	Opponent []byte `json:"opponent"` // base64 (32 bytes)
	Nonce    uint64 `json:"nonce"`
}

// DealRequest posts the issuer's shuffle commitment for the next round.
type DealRequest struct {
	Commitment []byte `json:"commitment"` // base64 (32 bytes)
}

// ShuffleReveal opens the issuer's previously committed seed.
type ShuffleReveal struct {
	Seed []byte `json:"seed"` // base64 (32 bytes)
}

type Hit struct{}

type Stand struct{}

func (Init) Type() string          { return TypeInit }
func (DealRequest) Type() string   { return TypeDealRequest }
func (ShuffleReveal) Type() string { return TypeShuffleReveal }
func (Hit) Type() string           { return TypeHit }
func (Stand) Type() string         { return TypeStand }

func (p Init) validate() error {
	if len(p.Opponent) != ed25519.PublicKeySize {
		return ErrMalformed.Wrapf("init.opponent must be %d bytes, got %d", ed25519.PublicKeySize, len(p.Opponent))
	}
	return nil
}

func (p DealRequest) validate() error {
	if len(p.Commitment) != HashSize {
		return ErrMalformed.Wrapf("deal_request.commitment must be %d bytes, got %d", HashSize, len(p.Commitment))
	}
	return nil
}

func (p ShuffleReveal) validate() error {
	if len(p.Seed) != HashSize {
		return ErrMalformed.Wrapf("shuffle_reveal.seed must be %d bytes, got %d", HashSize, len(p.Seed))
	}
	return nil
}

func (Hit) validate() error   { return nil }
func (Stand) validate() error { return nil }

// canonical renders the logical payload fields as length-prefixed binary.

func (p Init) canonical() []byte {
	out := appendBytes(nil, p.Opponent)
	return binary.BigEndian.AppendUint64(out, p.Nonce)
}

func (p DealRequest) canonical() []byte   { return appendBytes(nil, p.Commitment) }
func (p ShuffleReveal) canonical() []byte { return appendBytes(nil, p.Seed) }
func (Hit) canonical() []byte             { return []byte{} }
func (Stand) canonical() []byte           { return []byte{} }

func appendBytes(out, b []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// decodePayload strictly decodes value for typ. Hit and Stand accept an empty
// value, null or {}.
func decodePayload(typ string, value json.RawMessage) (Payload, error) {
	switch typ {
	case TypeInit:
		var p Init
		if err := strictUnmarshal(value, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeDealRequest:
		var p DealRequest
		if err := strictUnmarshal(value, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeShuffleReveal:
		var p ShuffleReveal
		if err := strictUnmarshal(value, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeHit:
		if err := emptyValue(value); err != nil {
			return nil, err
		}
		return Hit{}, nil
	case TypeStand:
		if err := emptyValue(value); err != nil {
			return nil, err
		}
		return Stand{}, nil
	default:
		return nil, ErrMalformed.Wrapf("unknown command type %q", typ)
	}
}

func strictUnmarshal(value json.RawMessage, v any) error {
	if len(bytes.TrimSpace(value)) == 0 {
		return ErrMalformed.Wrap("missing value")
	}
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ErrMalformed.Wrapf("bad value: %v", err)
	}
	if dec.More() {
		return ErrMalformed.Wrap("trailing data after value")
	}
	return nil
}

func emptyValue(value json.RawMessage) error {
	v := bytes.TrimSpace(value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v, &m); err != nil {
		return ErrMalformed.Wrapf("bad value: %v", err)
	}
	if len(m) != 0 {
		return ErrMalformed.Wrap("command takes no fields")
	}
	return nil
}

// ValidEpisodeID reports whether id is the lowercase hex form of a 32-byte id.
func ValidEpisodeID(id string) bool {
	if len(id) != 2*HashSize {
		return false
	}
	b, err := hex.DecodeString(id)
	if err != nil || len(b) != HashSize {
		return false
	}
	return hex.EncodeToString(b) == id
}
