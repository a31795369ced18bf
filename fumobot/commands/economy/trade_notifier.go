package economy

import (
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/fumocord/fumobot/fumobot/economy/trading"
)

// TradeNotifier delivers the outcomes the manager produces outside a
// direct interaction reply (grace-timer settlement, janitor expiry) as
// DMs to the participants.
type TradeNotifier struct {
	client bot.Client
	tokens *TokenRegistry
}

func NewTradeNotifier(client bot.Client, tokens *TokenRegistry) *TradeNotifier {
	return &TradeNotifier{client: client, tokens: tokens}
}

func (n *TradeNotifier) TradeCompleted(s *trading.Session) {
	n.tokens.RevokeSession(s.Key)
	embed := discord.NewEmbedBuilder().
		SetTitle("✅ Trade Completed").
		SetDescription("Your trade went through. Everything has changed hands.").
		SetColor(successColor).
		Build()
	n.dmBoth(s, embed)
}

func (n *TradeNotifier) TradeFailed(s *trading.Session, err error) {
	embed := discord.NewEmbedBuilder().
		SetTitle("❌ Trade Failed").
		SetDescription(tradeErrorMessage(err)).
		SetColor(errorColor).
		Build()
	n.dmBoth(s, embed)
}

func (n *TradeNotifier) TradeExpired(s *trading.Session) {
	n.tokens.RevokeSession(s.Key)
	embed := discord.NewEmbedBuilder().
		SetTitle("⏳ Trade Expired").
		SetDescription("The trade sat idle too long and was cancelled. You are both free to trade again.").
		SetColor(errorColor).
		Build()
	n.dmBoth(s, embed)
}

func (n *TradeNotifier) TradeCancelled(s *trading.Session, byUserID string) {
	n.tokens.RevokeSession(s.Key)
	other := s.Other(byUserID)
	if other == nil {
		return
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("🔄 Trade Cancelled").
		SetDescription(fmt.Sprintf("**%s** cancelled your trade.", s.Side(byUserID).Username)).
		SetColor(errorColor).
		Build()
	go n.dm(other.UserID, embed)
}

func (n *TradeNotifier) dmBoth(s *trading.Session, embed discord.Embed) {
	for _, side := range []*trading.OfferSide{s.SideA, s.SideB} {
		go n.dm(side.UserID, embed)
	}
}

func (n *TradeNotifier) dm(userID string, embed discord.Embed) {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return
	}
	channel, err := n.client.Rest().CreateDMChannel(id)
	if err != nil {
		slog.Debug("Could not open DM channel",
			slog.String("type", "trade"),
			slog.String("user_id", userID))
		return
	}
	_, _ = n.client.Rest().CreateMessage(channel.ID(), discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	})
}
