package commands

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
)

const (
	dailyCoins    = 500
	dailyGems     = 5
	dailyItemID   = "sunflower"
	dailyCooldown = 24 * time.Hour
)

var Daily = discord.SlashCommandCreate{
	Name:        "daily",
	Description: "🎁 Claim your daily coins, gems and a bonus fumo",
}

func DailyHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := b.UserRepository.GetOrCreate(ctx, e.User().ID.String(), e.User().Username)
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to load your profile.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		if remaining := dailyCooldown - time.Since(user.LastDaily); remaining > 0 {
			return e.CreateMessage(discord.MessageCreate{
				Content: fmt.Sprintf("⏳ Already claimed. Come back in %s.", remaining.Round(time.Minute)),
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		// Mark the claim before granting anything, so a retry after a
		// partial grant cannot double-claim.
		user.LastDaily = time.Now()
		if err := b.UserRepository.Update(ctx, user); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to claim your daily.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		if err := b.UserRepository.AddCoins(ctx, user.DiscordID, dailyCoins); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to grant your daily coins.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if err := b.UserRepository.AddGems(ctx, user.DiscordID, dailyGems); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to grant your daily gems.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if err := b.ItemRepository.AddUserItem(ctx, user.DiscordID, dailyItemID, 1); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to grant your daily item.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		lines := fmt.Sprintf("\U0001FA99 **%d** coins\n💎 **%d** gems\n🌻 **1** %s", dailyCoins, dailyGems, dailyItemID)

		// A bonus common fumo when any are defined.
		if commons, err := b.FumoRepository.GetByRarity(ctx, 1); err == nil && len(commons) > 0 {
			bonus := commons[rand.Intn(len(commons))]
			if err := b.FumoRepository.AddBatch(ctx, user.DiscordID, bonus.Name, 1); err == nil {
				lines += fmt.Sprintf("\n\U0001F9F8 **%s**", bonus.Name)
			}
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle("🎁 Daily Claimed").
					SetDescription(lines).
					SetColor(successColor).
					SetFooter("Next claim in 24h", "").
					Build(),
			},
		})
	}
}
