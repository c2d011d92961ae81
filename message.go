package silk

import (
	"github.com/ehrlich-b/silk/internal/constants"
	"github.com/ehrlich-b/silk/internal/queue"
)

// SilkID identifies a silk slot, dense over [0, NumSilk).
type SilkID = queue.SilkID

// MsgCode identifies the kind of a queued message. Codes below AppCodeFirst
// are reserved for the engine itself.
type MsgCode = queue.MsgCode

// Message is the (target, code, ctx) record exchanged through the engine's
// queue. Ctx is an opaque application-owned value, untouched by the engine.
type Message = queue.Message

// AppCodeFirst is the first MsgCode value applications may use for their
// own purposes.
const AppCodeFirst = constants.AppCodeFirst
