package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
	"github.com/fumocord/fumobot/fumobot/database/repositories"
)

var Coinflip = discord.SlashCommandCreate{
	Name:        "coinflip",
	Description: "\U0001FA99 Double or nothing on a coin flip",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Coins to wager",
			Required:    true,
			MinValue:    intPtr(1),
		},
		discord.ApplicationCommandOptionString{
			Name:        "side",
			Description: "Heads or tails",
			Required:    true,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "Heads", Value: "heads"},
				{Name: "Tails", Value: "tails"},
			},
		},
	},
}

func CoinflipHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		amount := int64(data.Int("amount"))
		side := data.String("side")

		user, err := b.UserRepository.GetOrCreate(ctx, e.User().ID.String(), e.User().Username)
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to load your profile.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if user.Coins < amount {
			return e.CreateMessage(discord.MessageCreate{
				Content: fmt.Sprintf("❌ You only have %d coins.", user.Coins),
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		landed := "tails"
		if rand.Intn(2) == 0 {
			landed = "heads"
		}

		won := landed == side
		if won {
			err = b.UserRepository.AddCoins(ctx, user.DiscordID, amount)
		} else {
			// Guarded: a concurrent spend between the balance check and
			// the debit must not leave the balance negative.
			err = b.UserRepository.SpendCoins(ctx, user.DiscordID, amount)
		}
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Your balance changed and no longer covers that wager.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to settle the wager.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		title := "\U0001FA99 You lost!"
		color := errorColor
		if won {
			title = "\U0001FA99 You won!"
			color = successColor
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle(title).
					SetDescription(fmt.Sprintf("The coin landed on **%s**. You %s **%d** coins.",
						landed, outcomeVerb(won), amount)).
					SetColor(color).
					Build(),
			},
		})
	}
}

func outcomeVerb(won bool) string {
	if won {
		return "won"
	}
	return "lost"
}

func intPtr(v int) *int {
	return &v
}
