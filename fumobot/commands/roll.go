package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
	"github.com/fumocord/fumobot/fumobot/gacha"
)

var Roll = discord.SlashCommandCreate{
	Name:        "roll",
	Description: "\U0001F3B0 Roll the gacha for a new fumo",
}

func RollHandler(b *fumobot.Bot) handler.CommandHandler {
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

		cost := b.GachaEngine.Cost()

		res, err := b.GachaEngine.Roll(ctx, user)
		if err != nil {
			if errors.Is(err, gacha.ErrInsufficientCoins) {
				return e.CreateMessage(discord.MessageCreate{
					Content: fmt.Sprintf("❌ A roll costs %d coins, you have %d.", cost, user.Coins),
					Flags:   discord.MessageFlagEphemeral,
				})
			}
			var lerr *gacha.RollLimitError
			if errors.As(err, &lerr) {
				return e.CreateMessage(discord.MessageCreate{
					Content: fmt.Sprintf("⏳ Roll limit reached. Try again in %s.", lerr.RetryAfter.Round(time.Second)),
					Flags:   discord.MessageFlagEphemeral,
				})
			}
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ The gacha machine jammed. Please try again later.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("\U0001F3B0 Gacha Roll").
			SetDescription(fmt.Sprintf("You pulled **%s**!\n%s", res.Fumo.Name, rarityStars(res.Rarity))).
			SetColor(rarityColor(res.Rarity)).
			SetFooter(fmt.Sprintf("%d rolls left this window", res.Remaining), "")

		if res.Pity {
			embed.AddField("Pity", "Your patience was rewarded.", false)
		}

		if b.SpacesService != nil && res.Fumo.ImageKey != "" && b.SpacesService.ImageExists(ctx, res.Fumo.ImageKey) {
			embed.SetImage(b.SpacesService.ImageURL(res.Fumo.ImageKey))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{embed.Build()},
		})
	}
}

func rarityStars(rarity int) string {
	return strings.Repeat("⭐", rarity)
}

func rarityColor(rarity int) int {
	switch rarity {
	case 5:
		return 0xFFD700
	case 4:
		return 0xA020F0
	case 3:
		return 0x3498DB
	case 2:
		return 0x2ECC71
	default:
		return 0x95A5A6
	}
}
