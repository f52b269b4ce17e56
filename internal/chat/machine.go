package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"demoki/internal/engine"
	"demoki/internal/metrics"
	"demoki/internal/models"
	"demoki/internal/workbook"

	"github.com/rs/zerolog"
)

// ReservationService is the slice of the reservation engine the dialog
// drives.
type ReservationService interface {
	FindAvailableDevice(ctx context.Context, deviceType string, start, end time.Time) (string, error)
	Book(ctx context.Context, device string, start, end time.Time, user models.UserInfo) (string, error)
	Cancel(ctx context.Context, reservationID string) error
	ListUserBookings(ctx context.Context, user models.UserInfo) ([]models.Reservation, error)
	ListCancellableBookings(ctx context.Context, user models.UserInfo) ([]models.Reservation, error)
}

// Turn is one inbound request: free text plus the caller-held snapshot.
type Turn struct {
	Text    string
	State   State
	User    models.UserInfo
	Context Context
	History []Message
}

// Reply carries the answer and the next snapshot the caller must store
// and send back verbatim.
type Reply struct {
	Text    string
	State   State
	User    models.UserInfo
	Context Context
}

// Machine turns (state, input) into (reply, next state). Each
// transition is total: invalid input re-prompts in place instead of
// failing the request, and the state never advances past a step whose
// engine call failed.
type Machine struct {
	svc    ReservationService
	logger *zerolog.Logger
}

func NewMachine(svc ReservationService, logger *zerolog.Logger) *Machine {
	return &Machine{svc: svc, logger: logger}
}

func (m *Machine) Handle(ctx context.Context, in Turn) Reply {
	metrics.IncChat(string(in.State))

	if in.Context == nil {
		in.Context = Context{}
	}

	if !in.State.Known() {
		return Reply{Text: msgGreeting, State: StateAwaitingName, User: in.User, Context: Context{}}
	}

	text := strings.TrimSpace(in.Text)

	switch in.State {
	case StateAwaitingName:
		return m.collectName(in, text)
	case StateAwaitingExtension:
		return m.collectExtension(in, text)
	case StateAwaitingEmployeeID:
		return m.collectEmployeeID(in, text)
	case StateAwaitingCommand:
		return m.dispatchCommand(ctx, in, text)
	case StateAwaitingDeviceType:
		return m.collectDeviceType(in, text)
	case StateAwaitingDates:
		return m.collectDates(ctx, in, text)
	case StateConfirmReservation:
		return m.confirmReservation(ctx, in, text)
	case StateAwaitingCancelID:
		return m.collectCancelID(in, text)
	case StateCancelConfirm:
		return m.confirmCancel(ctx, in, text)
	}

	return Reply{Text: msgGreeting, State: StateAwaitingName, User: in.User, Context: Context{}}
}

func (m *Machine) collectName(in Turn, text string) Reply {
	if text == "" {
		return m.stay(in, msgAskName)
	}
	user := in.User
	user.Name = text
	return Reply{Text: msgAskExtension, State: StateAwaitingExtension, User: user, Context: in.Context}
}

func (m *Machine) collectExtension(in Turn, text string) Reply {
	if text == "" {
		return m.stay(in, msgAskExtension)
	}
	user := in.User
	user.Extension = text
	return Reply{Text: msgAskEmployeeID, State: StateAwaitingEmployeeID, User: user, Context: in.Context}
}

func (m *Machine) collectEmployeeID(in Turn, text string) Reply {
	if text == "" {
		return m.stay(in, msgAskEmployeeID)
	}
	user := in.User
	user.EmployeeID = text
	return Reply{
		Text:    fmt.Sprintf("%sさん、登録ありがとうございます。%s", user.Name, msgCommandPrompt),
		State:   StateAwaitingCommand,
		User:    user,
		Context: in.Context,
	}
}

func (m *Machine) dispatchCommand(ctx context.Context, in Turn, text string) Reply {
	// Identity rides in the caller-held snapshot; a snapshot without it
	// cannot book or list, so re-run registration.
	if !in.User.Complete() {
		return Reply{Text: msgGreeting, State: StateAwaitingName, User: in.User, Context: Context{}}
	}

	switch classifyIntent(text) {
	case intentReserve:
		next := in.Context.clone()
		next[ctxIntent] = string(intentReserve)
		return Reply{Text: msgAskDeviceType, State: StateAwaitingDeviceType, User: in.User, Context: next}

	case intentCancel:
		next := in.Context.clone()
		next[ctxIntent] = string(intentCancel)
		reply := msgAskCancelID
		if listing, err := m.cancellableListing(ctx, in.User); err == nil && listing != "" {
			reply = listing + "\n" + msgAskCancelID
		}
		return Reply{Text: reply, State: StateAwaitingCancelID, User: in.User, Context: next}

	case intentList:
		// Listing has no sub-states: produce it and return to the
		// command prompt immediately.
		return m.stay(in, m.userListing(ctx, in.User))
	}

	return m.stay(in, msgUnrecognized)
}

func (m *Machine) collectDeviceType(in Turn, text string) Reply {
	if text == "" {
		return m.stay(in, msgAskDeviceType)
	}
	next := in.Context.clone()
	next[ctxDeviceType] = text
	return Reply{Text: msgAskDates, State: StateAwaitingDates, User: in.User, Context: next}
}

func (m *Machine) collectDates(ctx context.Context, in Turn, text string) Reply {
	start, end, err := parseDateRange(text)
	if err != nil {
		reply := msgBadDates
		if errors.Is(err, errReversedRange) {
			reply = msgDatesReversed
		}
		return m.stay(in, reply)
	}

	device, err := m.svc.FindAvailableDevice(ctx, in.Context.GetString(ctxDeviceType), start, end)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoDevice), errors.Is(err, engine.ErrSheetNotFound):
			return m.stay(in, msgNoDevice)
		default:
			return m.stay(in, m.errorMessage(err))
		}
	}

	next := in.Context.clone()
	next[ctxCandidate] = device
	next[ctxStartDate] = start.Format(models.DateLayout)
	next[ctxEndDate] = end.Format(models.DateLayout)

	reply := fmt.Sprintf("以下の内容で予約します。よろしいですか？（はい/いいえ）\nデモ機: %s\n期間: %s〜%s",
		device, start.Format(models.DateLayout), end.Format(models.DateLayout))
	return Reply{Text: reply, State: StateConfirmReservation, User: in.User, Context: next}
}

func (m *Machine) confirmReservation(ctx context.Context, in Turn, text string) Reply {
	switch {
	case isNo(text):
		return Reply{Text: msgBookAborted, State: StateAwaitingCommand, User: in.User, Context: resetContext()}
	case !isYes(text):
		return m.stay(in, msgYesNoPrompt)
	}

	device := in.Context.GetString(ctxCandidate)
	start, err1 := time.Parse(models.DateLayout, in.Context.GetString(ctxStartDate))
	end, err2 := time.Parse(models.DateLayout, in.Context.GetString(ctxEndDate))
	if device == "" || err1 != nil || err2 != nil {
		// Context was tampered with or lost; restart the branch.
		return Reply{Text: msgAskDeviceType, State: StateAwaitingDeviceType, User: in.User, Context: resetContext()}
	}

	id, err := m.svc.Book(ctx, device, start, end, in.User)
	if err != nil {
		if errors.Is(err, engine.ErrConflict) || errors.Is(err, engine.ErrNoDevice) {
			return Reply{Text: msgNoDevice, State: StateAwaitingDates, User: in.User, Context: in.Context}
		}
		return m.stay(in, m.errorMessage(err))
	}

	reply := fmt.Sprintf("予約完了しました。予約ID: %s（%s %s〜%s）", id, device,
		start.Format(models.DateLayout), end.Format(models.DateLayout))
	return Reply{Text: reply, State: StateAwaitingCommand, User: in.User, Context: resetContext()}
}

func (m *Machine) collectCancelID(in Turn, text string) Reply {
	if text == "" {
		return m.stay(in, msgAskCancelID)
	}
	next := in.Context.clone()
	next[ctxBookingID] = text
	reply := fmt.Sprintf("予約ID %s をキャンセルします。よろしいですか？（はい/いいえ）", text)
	return Reply{Text: reply, State: StateCancelConfirm, User: in.User, Context: next}
}

func (m *Machine) confirmCancel(ctx context.Context, in Turn, text string) Reply {
	switch {
	case isNo(text):
		return Reply{Text: msgCancelAborted, State: StateAwaitingCommand, User: in.User, Context: resetContext()}
	case !isYes(text):
		return m.stay(in, msgYesNoPrompt)
	}

	id := in.Context.GetString(ctxBookingID)
	if id == "" {
		return Reply{Text: msgAskCancelID, State: StateAwaitingCancelID, User: in.User, Context: resetContext()}
	}

	if err := m.svc.Cancel(ctx, id); err != nil {
		var reply string
		switch {
		case errors.Is(err, engine.ErrAlreadyCancelled):
			reply = msgAlreadyDone
		case errors.Is(err, engine.ErrReservationNotFound):
			reply = fmt.Sprintf("エラーが発生しました: 予約IDが見つかりません（%s）", id)
		default:
			return m.stay(in, m.errorMessage(err))
		}
		return Reply{Text: reply, State: StateAwaitingCommand, User: in.User, Context: resetContext()}
	}

	return Reply{
		Text:    fmt.Sprintf("キャンセル完了しました。予約ID: %s", id),
		State:   StateAwaitingCommand,
		User:    in.User,
		Context: resetContext(),
	}
}

// stay re-prompts without advancing: same state, same snapshot.
func (m *Machine) stay(in Turn, text string) Reply {
	return Reply{Text: text, State: in.State, User: in.User, Context: in.Context}
}

// errorMessage maps persistence failures to a retryable user-facing
// message; everything unanticipated gets a generic one.
func (m *Machine) errorMessage(err error) string {
	if errors.Is(err, workbook.ErrBusy) || errors.Is(err, workbook.ErrValidationFailed) {
		return msgBusy
	}
	m.logger.Error().Err(err).Msg("unexpected engine error")
	return msgInternal
}

func (m *Machine) userListing(ctx context.Context, user models.UserInfo) string {
	reservations, err := m.svc.ListUserBookings(ctx, user)
	if err != nil {
		return m.errorMessage(err)
	}
	if len(reservations) == 0 {
		return msgNoReservations
	}
	return formatListing(reservations)
}

func (m *Machine) cancellableListing(ctx context.Context, user models.UserInfo) (string, error) {
	reservations, err := m.svc.ListCancellableBookings(ctx, user)
	if err != nil {
		return "", err
	}
	if len(reservations) == 0 {
		return msgNoCancellable, nil
	}
	return formatListing(reservations), nil
}

func formatListing(reservations []models.Reservation) string {
	var b strings.Builder
	b.WriteString(msgListHeader)
	for _, r := range reservations {
		b.WriteString(fmt.Sprintf("\n- %s [%s] %s %s→%s", r.ID, r.Status, r.Device,
			r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout)))
	}
	return b.String()
}

var errReversedRange = errors.New("start date after end date")

// parseDateRange parses "YYYY-MM-DD,YYYY-MM-DD" (full-width comma
// tolerated) into an inclusive range.
func parseDateRange(text string) (time.Time, time.Time, error) {
	normalized := strings.ReplaceAll(text, "、", ",")
	normalized = strings.ReplaceAll(normalized, "，", ",")
	parts := strings.Split(normalized, ",")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected two dates, got %d", len(parts))
	}

	start, err := time.Parse(models.DateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(models.DateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errReversedRange
	}
	return start, end, nil
}

func resetContext() Context {
	return Context{}
}
