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

var Inventory = discord.SlashCommandCreate{
	Name:        "inventory",
	Description: "📦 Show the items you own",
}

func InventoryHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		stacks, err := b.ItemRepository.GetUserItems(ctx, e.User().ID.String())
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to fetch your inventory.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if len(stacks) == 0 {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{
					discord.NewEmbedBuilder().
						SetTitle("📦 Inventory").
						SetDescription("You don't own any items yet. Claim your /daily!").
						SetColor(backgroundColor).
						Build(),
				},
			})
		}

		var sb strings.Builder
		for _, stack := range stacks {
			name, emoji := stack.ItemID, "📦"
			if stack.Item != nil {
				name, emoji = stack.Item.Name, stack.Item.Emoji
			}
			fmt.Fprintf(&sb, "%s **%s** x%d\n", emoji, name, stack.Quantity)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle("📦 Inventory").
					SetDescription(sb.String()).
					SetColor(backgroundColor).
					SetFooter(fmt.Sprintf("%d item kinds", len(stacks)), "").
					Build(),
			},
		})
	}
}
