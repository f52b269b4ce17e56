package chat

// State names a step in the dialog. The snapshot is owned entirely by
// the caller: every request carries the state and context back in, and
// the reply carries the next ones out. The server keeps nothing.
type State string

const (
	StateAwaitingName       State = "AWAITING_NAME"
	StateAwaitingExtension  State = "AWAITING_EXTENSION"
	StateAwaitingEmployeeID State = "AWAITING_EMPLOYEE_ID"
	StateAwaitingCommand    State = "AWAITING_COMMAND"

	StateAwaitingDeviceType State = "AWAITING_DEVICE_TYPE"
	StateAwaitingDates      State = "AWAITING_DATES"
	StateConfirmReservation State = "CONFIRM_RESERVATION"
	StateAwaitingCancelID   State = "AWAITING_CANCEL_BOOKING_ID"
	StateCancelConfirm      State = "CANCEL_CONFIRM"
)

// Known reports whether the state is one the machine can resume from.
func (s State) Known() bool {
	switch s {
	case StateAwaitingName, StateAwaitingExtension, StateAwaitingEmployeeID,
		StateAwaitingCommand, StateAwaitingDeviceType, StateAwaitingDates,
		StateConfirmReservation, StateAwaitingCancelID, StateCancelConfirm:
		return true
	}
	return false
}

// Context is the open-ended bag of partially entered fields riding
// alongside the state snapshot. Values arrive as decoded JSON, so
// accessors tolerate missing keys and foreign types.
type Context map[string]interface{}

const (
	ctxIntent     = "intent"
	ctxDeviceType = "device_type"
	ctxCandidate  = "candidate_device"
	ctxStartDate  = "start_date"
	ctxEndDate    = "end_date"
	ctxBookingID  = "booking_id"
)

func (c Context) GetString(key string) string {
	if c == nil {
		return ""
	}
	if s, ok := c[key].(string); ok {
		return s
	}
	return ""
}

func (c Context) clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Message is one prior turn of the conversation, supplied by the caller
// for context. The fixed-phrase classifier does not consume it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
