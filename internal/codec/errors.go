package codec

import errorsmod "cosmossdk.io/errors"

// Codespace groups authentication failures. They reject a single command and
// never affect the episode.
const Codespace = "auth"

var (
	ErrMalformed       = errorsmod.Register(Codespace, 2, "malformed command")
	ErrEpisodeMismatch = errorsmod.Register(Codespace, 3, "episode id mismatch")
	ErrBadSignature    = errorsmod.Register(Codespace, 4, "invalid signature")
)
