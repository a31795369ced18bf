package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/fumocord/fumobot/fumobot"
)

const fumosPerPage = 10

var Collection = discord.SlashCommandCreate{
	Name:        "collection",
	Description: "\U0001F9F8 Browse your fumo collection",
}

func CollectionHandler(b *fumobot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rows, err := b.FumoRepository.GetUserFumos(ctx, e.User().ID.String())
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Failed to fetch your collection.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		if len(rows) == 0 {
			return e.CreateMessage(discord.MessageCreate{
				Embeds: []discord.Embed{
					discord.NewEmbedBuilder().
						SetTitle("\U0001F9F8 Collection").
						SetDescription("You don't own any fumos yet. Try /roll!").
						SetColor(backgroundColor).
						Build(),
				},
			})
		}

		// Batch rows collapse to display totals; rarity comes from the
		// definitions.
		rarities := make(map[string]int)
		if all, err := b.FumoRepository.GetAll(ctx); err == nil {
			for _, f := range all {
				rarities[f.Name] = f.Rarity
			}
		}

		type entry struct {
			name  string
			total int64
		}
		totals := make(map[string]int64)
		var order []string
		for _, row := range rows {
			if _, seen := totals[row.FumoName]; !seen {
				order = append(order, row.FumoName)
			}
			totals[row.FumoName] += row.Quantity
		}
		entries := make([]entry, 0, len(order))
		for _, name := range order {
			entries = append(entries, entry{name: name, total: totals[name]})
		}

		totalPages := int(math.Ceil(float64(len(entries)) / float64(fumosPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				startIdx := page * fumosPerPage
				endIdx := min(startIdx+fumosPerPage, len(entries))

				var description strings.Builder
				description.WriteString("```ansi\n")
				for _, en := range entries[startIdx:endIdx] {
					description.WriteString(fmt.Sprintf("%s \x1b[32m%s\x1b[0m x%d\n",
						rarityStars(rarities[en.name]),
						en.name,
						en.total,
					))
				}
				description.WriteString("```")

				embed.
					SetTitle("\U0001F9F8 Collection").
					SetDescription(description.String()).
					SetColor(backgroundColor).
					SetFooter(fmt.Sprintf("Page %d/%d • %d fumos", page+1, totalPages, len(entries)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
