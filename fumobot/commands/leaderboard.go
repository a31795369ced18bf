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

const leaderboardSize = 10

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "🏆 The richest fumo collectors",
}

func LeaderboardHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		users, err := b.UserRepository.GetTopUsers(ctx, leaderboardSize)
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to fetch the leaderboard.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if len(users) == 0 {
			return e.CreateMessage(discord.MessageCreate{
				Content: "Nobody has earned any coins yet.",
			})
		}

		medals := []string{"🥇", "🥈", "🥉"}
		var sb strings.Builder
		for i, u := range users {
			rank := fmt.Sprintf("`%2d.`", i+1)
			if i < len(medals) {
				rank = medals[i]
			}
			fmt.Fprintf(&sb, "%s **%s** — \U0001FA99 %d\n", rank, u.Username, u.Coins)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle("🏆 Coin Leaderboard").
					SetDescription(sb.String()).
					SetColor(backgroundColor).
					SetFooter(fmt.Sprintf("Top %d by coins", len(users)), "").
					Build(),
			},
		})
	}
}
