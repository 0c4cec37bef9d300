// Package discord posts prize announcements to a Discord channel.
package discord

import (
	"context"
	"fmt"
	"strings"

	"luckystake/events"
	"luckystake/models"
	"luckystake/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// ColorSuccess is the embed accent for a settled draw
const ColorSuccess = 0x57F287

// MessageSender is the subset of *discordgo.Session used for announcements
type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts a result embed for every committed draw
type Announcer struct {
	sender    MessageSender
	channelID string
}

// New creates an announcer backed by a bot session. Only the REST API is
// used, so the gateway connection is never opened.
func New(token, channelID string) (*Announcer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return NewWithSender(session, channelID), nil
}

// NewWithSender creates an announcer around an existing sender
func NewWithSender(sender MessageSender, channelID string) *Announcer {
	return &Announcer{sender: sender, channelID: channelID}
}

// Attach subscribes the announcer to prize draws on bus
func (a *Announcer) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypePrizeDrawn, a.HandleEvent)
}

// HandleEvent posts the announcement for a PrizeDrawnEvent and ignores anything else
func (a *Announcer) HandleEvent(ctx context.Context, event events.Event) {
	e, ok := event.(events.PrizeDrawnEvent)
	if !ok {
		return
	}
	if err := a.Announce(e.Prize, e.Pool); err != nil {
		log.WithFields(log.Fields{
			"prize": e.Prize.ID,
			"pool":  e.Prize.PoolID,
		}).WithError(err).Error("Failed to post prize announcement")
	}
}

// Announce sends the result embed for prize
func (a *Announcer) Announce(prize *models.Prize, pool *models.Pool) error {
	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, CreatePrizeEmbed(prize, pool)); err != nil {
		return fmt.Errorf("failed to send embed: %w", err)
	}
	log.WithFields(log.Fields{
		"prize":   prize.ID,
		"channel": a.channelID,
	}).Debug("Posted prize announcement")
	return nil
}

// CreatePrizeEmbed builds the embed for a completed draw
func CreatePrizeEmbed(prize *models.Prize, pool *models.Pool) *discordgo.MessageEmbed {
	name := prize.PoolID
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:] + " Pool"
	}
	currency := "USDC"
	var fields []*discordgo.MessageEmbedField

	if pool != nil {
		if pool.Name != "" {
			name = pool.Name
		}
		if pool.Currency != "" {
			currency = pool.Currency
		}
	}

	fields = append(fields,
		&discordgo.MessageEmbedField{
			Name:   "Winner",
			Value:  fmt.Sprintf("`%s`", service.MaskAccountID(prize.WinnerID)),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "Odds",
			Value:  fmt.Sprintf("%d of %d tickets (%s)", prize.WinnerTickets, prize.TotalTickets, service.FormatWinProbability(service.WinProbability(prize.WinnerTickets, prize.TotalTickets))),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "Participants",
			Value:  fmt.Sprintf("%d", prize.Participants),
			Inline: true,
		},
	)

	if pool != nil && !pool.NextDrawAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Next Draw",
			Value:  fmt.Sprintf("<t:%d:R>", pool.NextDrawAt.Unix()),
			Inline: false,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s - %s %s prize", name, prize.Amount.StringFixed(2), currency),
		Color:       ColorSuccess,
		Description: fmt.Sprintf("Drew <t:%d:d> <t:%d:t>", prize.DrawnAt.Unix(), prize.DrawnAt.Unix()),
		Fields:      fields,
	}
}
