package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot"
	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/fumocord/fumobot/fumobot/database/repositories"
	"github.com/fumocord/fumobot/fumobot/economy/trading"
	"github.com/fumocord/fumobot/fumobot/handlers"
	"github.com/fumocord/fumobot/fumobot/services"
)

const defaultQueryTimeout = 10 * time.Second

var TradeCommand = discord.SlashCommandCreate{
	Name:        "trade",
	Description: "Trade coins, items, pets and fumos with another user",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "propose",
			Description: "Invite another user to trade",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user you want to trade with",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "coins",
			Description: "Set the coins on your side of the trade (0 removes)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Coin amount",
					Required:    true,
					MinValue:    intPtr(0),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "gems",
			Description: "Set the gems on your side of the trade (0 removes)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Gem amount",
					Required:    true,
					MinValue:    intPtr(0),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "item",
			Description: "Set an item quantity on your side of the trade (0 removes)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "item",
					Description: "Item name or id",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "quantity",
					Description: "Quantity",
					Required:    true,
					MinValue:    intPtr(0),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "pet",
			Description: "Pledge or withdraw a pet",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "pet_id",
					Description: "Your pet's id",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "withdraw",
					Description: "Withdraw the pet instead of pledging it",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "fumo",
			Description: "Set a fumo quantity on your side of the trade (0 removes)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "fumo",
					Description:  "Fumo name (typos are fine)",
					Required:     true,
					Autocomplete: true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "quantity",
					Description: "Quantity",
					Required:    true,
					MinValue:    intPtr(0),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "status",
			Description: "Show your current trade",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Cancel your current trade",
		},
	},
}

type TradeHandler struct {
	bot     *fumobot.Bot
	manager *trading.Manager
	tokens  *TokenRegistry

	itemRepo repositories.ItemRepository
	petRepo  repositories.PetRepository
	search   *services.FumoSearchService
}

func NewTradeHandler(bot *fumobot.Bot) *TradeHandler {
	return &TradeHandler{
		bot:      bot,
		manager:  bot.TradeManager,
		tokens:   NewTokenRegistry(),
		itemRepo: bot.ItemRepository,
		petRepo:  bot.PetRepository,
		search:   bot.FumoSearch,
	}
}

// Tokens exposes the component token registry so the notifier can revoke
// a session's panels when it terminates out-of-band.
func (h *TradeHandler) Tokens() *TokenRegistry {
	return h.tokens
}

func (h *TradeHandler) Register(r handler.Router) {
	r.Command("/trade", handlers.WrapWithLogging("trade", h.HandleTrade))
	r.Autocomplete("/trade", h.HandleTradeAutocomplete)
	r.Component("/trade/{token}", handlers.WrapComponentWithLogging("trade", h.HandleTradeComponent))
}

// HandleTradeAutocomplete suggests fumo names for the fumo subcommand.
func (h *TradeHandler) HandleTradeAutocomplete(event *handler.AutocompleteEvent) error {
	focused := event.Data.Focused()
	if focused.Name != "fumo" {
		return nil
	}

	query := ""
	if focused.Value != nil {
		var s string
		if err := json.Unmarshal(focused.Value, &s); err == nil {
			query = strings.TrimSpace(s)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fumos, err := h.search.Suggest(ctx, query, 25)
	if err != nil {
		return event.AutocompleteResult([]discord.AutocompleteChoice{})
	}

	choices := make([]discord.AutocompleteChoice, 0, len(fumos))
	for _, f := range fumos {
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  f.Name,
			Value: f.Name,
		})
	}
	return event.AutocompleteResult(choices)
}

func (h *TradeHandler) HandleTrade(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()
	switch *data.SubCommandName {
	case "propose":
		return h.handlePropose(event)
	case "coins":
		return h.handleCurrency(event, trading.CurrencyCoins)
	case "gems":
		return h.handleCurrency(event, trading.CurrencyGems)
	case "item":
		return h.handleItem(event)
	case "pet":
		return h.handlePet(event)
	case "fumo":
		return h.handleFumo(event)
	case "status":
		return h.handleStatus(event)
	case "cancel":
		return h.handleCancel(event)
	}
	return ephemeral(event, "❌ Unknown trade subcommand.")
}

func (h *TradeHandler) handlePropose(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()
	target := data.User("user")

	s, err := h.manager.Propose(
		event.User().ID.String(), event.User().Username,
		target.ID.String(), target.Username,
		target.Bot,
	)
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🔄 Trade Invite").
		SetDescription(fmt.Sprintf("%s invited %s to trade.", event.User().Mention(), target.Mention())).
		SetColor(backgroundColor).
		SetFooter("The invite expires if unanswered.", "").
		Build()

	return event.CreateMessage(discord.MessageCreate{
		Embeds:     []discord.Embed{embed},
		Components: h.inviteComponents(s),
	})
}

func (h *TradeHandler) handleCurrency(event *handler.CommandEvent, kind trading.Currency) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	userID := event.User().ID.String()
	s, ok := h.manager.SessionFor(userID)
	if !ok {
		return ephemeral(event, "❌ You have no active trade. Start one with /trade propose.")
	}

	amount := int64(event.SlashCommandInteractionData().Int("amount"))
	s, err := h.manager.UpdateCurrency(ctx, s.Key, userID, 0, kind, amount)
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}
	return h.respondWithSession(event, s)
}

func (h *TradeHandler) handleItem(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	userID := event.User().ID.String()
	s, ok := h.manager.SessionFor(userID)
	if !ok {
		return ephemeral(event, "❌ You have no active trade. Start one with /trade propose.")
	}

	data := event.SlashCommandInteractionData()
	query := data.String("item")
	quantity := int64(data.Int("quantity"))

	item, err := h.resolveItem(ctx, query)
	if err != nil || item == nil {
		return ephemeral(event, fmt.Sprintf("❌ No item matches '%s'.", query))
	}

	s, err = h.manager.UpdateItem(ctx, s.Key, userID, 0, item.ID, quantity)
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}
	return h.respondWithSession(event, s)
}

func (h *TradeHandler) handlePet(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	userID := event.User().ID.String()
	s, ok := h.manager.SessionFor(userID)
	if !ok {
		return ephemeral(event, "❌ You have no active trade. Start one with /trade propose.")
	}

	data := event.SlashCommandInteractionData()
	petID := int64(data.Int("pet_id"))
	withdraw, _ := data.OptBool("withdraw")

	if withdraw {
		s, err := h.manager.RemovePet(s.Key, userID, 0, petID)
		if err != nil {
			return ephemeral(event, tradeErrorMessage(err))
		}
		return h.respondWithSession(event, s)
	}

	pet, err := h.petRepo.GetByID(ctx, petID)
	if err != nil {
		return ephemeral(event, fmt.Sprintf("❌ Pet %d not found.", petID))
	}

	s, err = h.manager.AddPet(ctx, s.Key, userID, 0, trading.PetSnapshot{
		PetID:   pet.ID,
		Name:    pet.Name,
		Species: pet.Species,
		Level:   pet.Level,
	})
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}
	return h.respondWithSession(event, s)
}

func (h *TradeHandler) handleFumo(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	userID := event.User().ID.String()
	s, ok := h.manager.SessionFor(userID)
	if !ok {
		return ephemeral(event, "❌ You have no active trade. Start one with /trade propose.")
	}

	data := event.SlashCommandInteractionData()
	query := data.String("fumo")
	quantity := int64(data.Int("quantity"))

	fumo, err := h.search.Resolve(ctx, query)
	if err != nil || fumo == nil {
		return ephemeral(event, fmt.Sprintf("❌ No fumo matches '%s'.", query))
	}

	s, err = h.manager.UpdateFumo(ctx, s.Key, userID, 0, fumo.Name, quantity, 0)
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}
	return h.respondWithSession(event, s)
}

func (h *TradeHandler) handleStatus(event *handler.CommandEvent) error {
	s, ok := h.manager.SessionFor(event.User().ID.String())
	if !ok {
		return ephemeral(event, "❌ You have no active trade.")
	}
	return h.respondWithSession(event, s)
}

func (h *TradeHandler) handleCancel(event *handler.CommandEvent) error {
	userID := event.User().ID.String()
	s, ok := h.manager.SessionFor(userID)
	if !ok {
		return ephemeral(event, "❌ You have no active trade.")
	}

	s, err := h.manager.Cancel(s.Key, userID)
	if err != nil {
		return ephemeral(event, tradeErrorMessage(err))
	}
	h.tokens.RevokeSession(s.Key)

	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{
			discord.NewEmbedBuilder().
				SetTitle("🔄 Trade Cancelled").
				SetDescription("The trade was cancelled. Both of you are free to trade again.").
				SetColor(errorColor).
				Build(),
		},
	})
}

func (h *TradeHandler) resolveItem(ctx context.Context, query string) (*models.Item, error) {
	items, err := h.itemRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if strings.EqualFold(it.ID, query) || strings.EqualFold(it.Name, query) {
			return it, nil
		}
	}
	return nil, nil
}

func (h *TradeHandler) respondWithSession(event *handler.CommandEvent, s *trading.Session) error {
	embed, components := h.renderSession(s)
	return event.CreateMessage(discord.MessageCreate{
		Embeds:     []discord.Embed{embed},
		Components: components,
	})
}
