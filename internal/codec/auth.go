package codec

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	signDomainV1    = "bj/cmd/v1"
	episodeDomainV1 = "bj/episode/v1"
)

// SignBytes is the message a participant signs:
//
//	DOMAIN || 0x00 || episodeId || 0x00 || u64be(seq) || 0x00 || type || 0x00 || issuer || 0x00 || sha256(canonical(payload))
func SignBytes(episodeID string, seq uint64, issuer ed25519.PublicKey, p Payload) []byte {
	sum := sha256.Sum256(p.canonical())
	typ := p.Type()
	out := make([]byte, 0, len(signDomainV1)+1+len(episodeID)+1+8+1+len(typ)+1+len(issuer)+1+sha256.Size)
	out = append(out, []byte(signDomainV1)...)
	out = append(out, 0)
	out = append(out, []byte(episodeID)...)
	out = append(out, 0)
	out = binary.BigEndian.AppendUint64(out, seq)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, issuer...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// Sign builds the canonical wire bytes of a command signed by priv.
func Sign(priv ed25519.PrivateKey, episodeID string, seq uint64, p Payload) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if p == nil {
		return nil, fmt.Errorf("missing payload")
	}
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, SignBytes(episodeID, seq, pub, p))
	return Encode(episodeID, seq, pub, p, sig)
}

// Encode renders a command envelope. Equal inputs always produce equal bytes.
func Encode(episodeID string, seq uint64, issuer ed25519.PublicKey, p Payload, sig []byte) ([]byte, error) {
	var value json.RawMessage
	switch p.(type) {
	case Hit, Stand:
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s value: %w", p.Type(), err)
		}
		value = b
	}
	env := Envelope{
		EpisodeID: episodeID,
		Seq:       seq,
		Type:      p.Type(),
		Value:     value,
		Issuer:    issuer,
		Sig:       sig,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses the JSON container without authenticating it.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, ErrMalformed.Wrapf("invalid command json: %v", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMalformed.Wrap("missing type")
	}
	if !ValidEpisodeID(env.EpisodeID) {
		return Envelope{}, ErrMalformed.Wrapf("invalid episodeId %q", env.EpisodeID)
	}
	return env, nil
}

// PeekEpisodeID extracts the episode id for routing. It does not authenticate.
func PeekEpisodeID(raw []byte) (string, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return "", err
	}
	return env.EpisodeID, nil
}

// DecodeAndAuthenticate decodes raw and verifies the issuer's signature.
//
// Structural problems yield ErrMalformed, a command addressed to another
// episode ErrEpisodeMismatch, and a signature that does not verify against the
// embedded issuer key ErrBadSignature. It has no side effects.
func DecodeAndAuthenticate(raw []byte, expectedEpisodeID string) (Command, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return Command{}, err
	}
	if env.Seq == 0 {
		return Command{}, ErrMalformed.Wrap("seq must be positive")
	}
	if len(env.Issuer) != ed25519.PublicKeySize {
		return Command{}, ErrMalformed.Wrapf("issuer must be %d bytes, got %d", ed25519.PublicKeySize, len(env.Issuer))
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return Command{}, ErrMalformed.Wrapf("sig must be %d bytes, got %d", ed25519.SignatureSize, len(env.Sig))
	}
	p, err := decodePayload(env.Type, env.Value)
	if err != nil {
		return Command{}, err
	}
	if err := p.validate(); err != nil {
		return Command{}, err
	}
	if env.EpisodeID != expectedEpisodeID {
		return Command{}, ErrEpisodeMismatch.Wrapf("command for %s, expected %s", env.EpisodeID, expectedEpisodeID)
	}
	issuer := ed25519.PublicKey(env.Issuer)
	if !ed25519.Verify(issuer, SignBytes(env.EpisodeID, env.Seq, issuer, p), env.Sig) {
		return Command{}, ErrBadSignature
	}
	return Command{
		EpisodeID: env.EpisodeID,
		Seq:       env.Seq,
		Issuer:    issuer,
		Payload:   p,
	}, nil
}

// DeriveEpisodeID binds an episode to its initiator's key and a nonce.
func DeriveEpisodeID(initiator ed25519.PublicKey, nonce uint64) string {
	h := sha256.New()
	_, _ = h.Write([]byte(episodeDomainV1))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(initiator)
	var n8 [8]byte
	binary.BigEndian.PutUint64(n8[:], nonce)
	_, _ = h.Write(n8[:])
	return hex.EncodeToString(h.Sum(nil))
}
