package engine

import errorsmod "cosmossdk.io/errors"

// Codespace of engine failures. ErrRollbackInconsistency is fatal for the
// engine that reports it; every later command gets ErrEngineHalted.
const Codespace = "engine"

var (
	ErrStalePosition         = errorsmod.Register(Codespace, 2, "ledger position not after the last applied position")
	ErrRollbackInconsistency = errorsmod.Register(Codespace, 3, "no checkpoint at or before rollback position")
	ErrEngineHalted          = errorsmod.Register(Codespace, 4, "engine halted")
)
