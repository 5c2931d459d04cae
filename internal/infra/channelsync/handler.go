package channelsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	bookingapp "roomledger/internal/app/handlers/booking"
	"roomledger/internal/app/policies"
	domainbooking "roomledger/internal/domain/booking"
	domainhotels "roomledger/internal/domain/hotels"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/domain/stay"
	"roomledger/internal/infra/broker/kafka"
)

// Inbox deduplicates redelivered messages by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Message is a booking made on an external sales channel.
type Message struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data BookingData `json:"data"`
}

type BookingData struct {
	Channel     string              `json:"channel"`
	ExternalRef string              `json:"external_ref"`
	RoomTypeID  string              `json:"room_type_id"`
	CheckIn     string              `json:"check_in"`
	CheckOut    string              `json:"check_out"`
	Units       int                 `json:"units"`
	Adults      int                 `json:"adults"`
	Children    int                 `json:"children"`
	PromoCode   string              `json:"promo_code"`
	Guest       domainbooking.Guest `json:"guest"`
}

// Handler turns channel booking messages into reservations. Messages the
// engine rejects for business reasons are acknowledged and logged; transient
// failures release the inbox claim and are returned so the message is
// redelivered.
type Handler struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

func (h *Handler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		h.log().Warn("channel message undecodable, skipping", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if m.ID == "" {
		m.ID = kafka.Header(msg, "ce_id")
	}
	if m.ID == "" {
		m.ID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	_, err := h.Apply(ctx, m)
	return err
}

// Apply reserves the booking described by m once per event id.
func (h *Handler) Apply(ctx context.Context, m Message) (*dto.Booking, error) {
	cmd, err := m.command()
	if err != nil {
		h.log().Warn("channel booking malformed, skipping", "event_id", m.ID, "error", err)
		return nil, nil
	}
	seen, err := h.Inbox.Seen(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		h.log().Debug("channel booking already applied", "event_id", m.ID)
		return nil, nil
	}

	ctx = policies.WithPrincipal(ctx, policies.Principal{
		ID:    "channel:" + m.Data.Channel,
		Roles: []string{policies.RoleChannel, policies.RoleSystem},
	})
	booking, err := commands.Dispatch[bookingapp.ReserveCommand, *dto.Booking](ctx, h.Commands, cmd)
	switch {
	case err == nil:
		h.log().Info("channel booking applied", "event_id", m.ID, "booking_id", booking.ID, "channel", m.Data.Channel, "external_ref", m.Data.ExternalRef)
		return booking, nil
	case errors.Is(err, errs.ErrAlreadyExists):
		h.log().Info("channel booking already recorded", "event_id", m.ID, "external_ref", m.Data.ExternalRef)
		return nil, nil
	case Permanent(err):
		h.log().Warn("channel booking rejected", "event_id", m.ID, "channel", m.Data.Channel, "external_ref", m.Data.ExternalRef, "error", err)
		return nil, nil
	default:
		if forgetErr := h.Inbox.Forget(context.WithoutCancel(ctx), m.ID); forgetErr != nil {
			h.log().Error("inbox release failed", "event_id", m.ID, "error", forgetErr)
		}
		return nil, err
	}
}

func (m Message) command() (bookingapp.ReserveCommand, error) {
	d := m.Data
	dr, err := daterange.Parse(d.CheckIn, d.CheckOut)
	if err != nil {
		return bookingapp.ReserveCommand{}, err
	}
	if strings.TrimSpace(d.Channel) == "" {
		return bookingapp.ReserveCommand{}, fmt.Errorf("%w: channel name is required", errs.ErrValidation)
	}
	ref := strings.TrimSpace(d.ExternalRef)
	if ref != "" {
		ref = d.Channel + ":" + ref
	}
	return bookingapp.ReserveCommand{
		Request: stay.Request{
			RoomTypeID: domainhotels.RoomTypeID(d.RoomTypeID),
			Range:      dr,
			Units:      d.Units,
			Adults:     d.Adults,
			Children:   d.Children,
			PromoCode:  d.PromoCode,
		},
		Guest:           d.Guest,
		Source:          domainbooking.SourceChannel,
		ExternalRef:     ref,
		IdempotencyKeyV: m.ID,
	}, nil
}

// Permanent reports rejections a redelivery would hit again.
func Permanent(err error) bool {
	var conflict *domaininventory.ConflictError
	return errors.As(err, &conflict) ||
		errors.Is(err, domaininventory.ErrConflict) ||
		errors.Is(err, domainpromo.ErrPromoCode) ||
		errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrForbidden) ||
		errors.Is(err, errs.ErrUnauthenticated)
}

func (h *Handler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ kafka.MessageHandler = (*Handler)(nil)
