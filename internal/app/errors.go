package app

import errorsmod "cosmossdk.io/errors"

const Codespace = "app"

var (
	ErrUnknownQuery    = errorsmod.Register(Codespace, 2, "unknown query path")
	ErrEpisodeNotFound = errorsmod.Register(Codespace, 3, "episode not found")
	ErrBlockTooLarge   = errorsmod.Register(Codespace, 4, "too many txs in block")
	ErrAppHashMismatch = errorsmod.Register(Codespace, 5, "restored state does not match last commit")
)
