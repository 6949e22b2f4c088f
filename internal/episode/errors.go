package episode

import errorsmod "cosmossdk.io/errors"

// Codespace groups sequencing rejections. A rejected command leaves the
// episode untouched.
const Codespace = "sequence"

var (
	ErrWrongPhase         = errorsmod.Register(Codespace, 2, "command not allowed in this phase")
	ErrNotYourTurn        = errorsmod.Register(Codespace, 3, "not the turn holder")
	ErrDuplicateSequence  = errorsmod.Register(Codespace, 4, "duplicate sequence number")
	ErrUnknownParticipant = errorsmod.Register(Codespace, 5, "issuer is not a participant")
	ErrInvalidInit        = errorsmod.Register(Codespace, 6, "invalid init")
	ErrRevealPending      = errorsmod.Register(Codespace, 7, "opponent already revealed")
	ErrDuplicateReveal    = errorsmod.Register(Codespace, 8, "seed already revealed")
	ErrUnsupportedCommand = errorsmod.Register(Codespace, 9, "unsupported command")
	ErrSequenceGap        = errorsmod.Register(Codespace, 10, "sequence number ahead of episode")
)
