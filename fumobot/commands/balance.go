package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
)

var Balance = discord.SlashCommandCreate{
	Name:        "balance",
	Description: "\U0001F4B0 View your coin and gem balances",
}

func BalanceHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := b.UserRepository.GetOrCreate(ctx, e.User().ID.String(), e.User().Username)
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{{
					Title:       "Error",
					Description: "Failed to fetch your balance. Please try again later.",
					Color:       errorColor,
				}},
			})
		}

		description := fmt.Sprintf("```ansi\n"+
			"\x1b[1;36mCoins:\x1b[0m %d\n"+
			"\x1b[0;37m%s\x1b[0m\n"+
			"\n"+
			"\x1b[1;35mGems:\x1b[0m %d\n"+
			"\x1b[0;37m%s\x1b[0m\n"+
			"```",
			user.Coins,
			createBalanceBar(user.Coins),
			user.Gems,
			createBalanceBar(user.Gems),
		)

		now := time.Now()
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "\U0001F4B0 Balance",
				Description: description,
				Color:       successColor,
				Footer: &discord.EmbedFooter{
					Text: fmt.Sprintf("Requested by %s", e.User().Username),
				},
				Timestamp: &now,
			}},
		})
	}
}

func createBalanceBar(balance int64) string {
	const barLength = 10

	var milestone int64 = 1_000_000
	if balance < 100_000 {
		milestone = 100_000
	} else if balance < 500_000 {
		milestone = 500_000
	}

	progress := float64(balance) / float64(milestone)
	if progress > 1.0 {
		progress = 1.0
	}
	filled := int(progress * float64(barLength))

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < barLength; i++ {
		if i < filled {
			bar.WriteString("■")
		} else {
			bar.WriteString("□")
		}
	}
	bar.WriteString(fmt.Sprintf("] %.1f%%", progress*100))

	return bar.String()
}
