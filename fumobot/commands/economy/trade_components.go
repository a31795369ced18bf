package economy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/fumocord/fumobot/fumobot/economy/trading"
)

func (h *TradeHandler) HandleTradeComponent(event *handler.ComponentEvent) error {
	token := event.Vars["token"]
	binding, ok := h.tokens.Resolve(token)
	if !ok {
		return ephemeralComponent(event, "❌ This trade panel has expired. Use /trade status for a fresh one.")
	}

	userID := event.User().ID.String()

	switch binding.Action {
	case actionAcceptInvite:
		s, err := h.manager.AcceptInvite(binding.SessionKey, userID)
		if err != nil {
			return ephemeralComponent(event, tradeErrorMessage(err))
		}
		return h.updateWithSession(event, s)

	case actionDeclineInvite:
		s, err := h.manager.Cancel(binding.SessionKey, userID)
		if err != nil {
			return ephemeralComponent(event, tradeErrorMessage(err))
		}
		h.tokens.RevokeSession(s.Key)
		return event.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle("🔄 Trade Declined").
					SetDescription(fmt.Sprintf("%s declined the invite.", event.User().Username)).
					SetColor(errorColor).
					Build(),
			},
			Components: &[]discord.ContainerComponent{},
		})

	case actionToggleAccept:
		s, err := h.manager.ToggleAccept(binding.SessionKey, userID, binding.Version)
		if err != nil {
			return ephemeralComponent(event, tradeErrorMessage(err))
		}
		return h.updateWithSession(event, s)

	case actionToggleConfirm:
		s, err := h.manager.ToggleConfirm(binding.SessionKey, userID, binding.Version)
		if err != nil {
			return ephemeralComponent(event, tradeErrorMessage(err))
		}
		return h.updateWithSession(event, s)

	case actionCancel:
		s, err := h.manager.Cancel(binding.SessionKey, userID)
		if err != nil {
			return ephemeralComponent(event, tradeErrorMessage(err))
		}
		h.tokens.RevokeSession(s.Key)
		return event.UpdateMessage(discord.MessageUpdate{
			Embeds: &[]discord.Embed{
				discord.NewEmbedBuilder().
					SetTitle("🔄 Trade Cancelled").
					SetDescription(fmt.Sprintf("%s cancelled the trade.", event.User().Username)).
					SetColor(errorColor).
					Build(),
			},
			Components: &[]discord.ContainerComponent{},
		})
	}

	return ephemeralComponent(event, "❌ Invalid trade interaction.")
}

func (h *TradeHandler) updateWithSession(event *handler.ComponentEvent, s *trading.Session) error {
	embed, components := h.renderSession(s)
	return event.UpdateMessage(discord.MessageUpdate{
		Embeds:     &[]discord.Embed{embed},
		Components: &components,
	})
}

// renderSession builds the trade panel. Every render revokes the
// session's previous tokens, so only the newest panel's buttons work.
func (h *TradeHandler) renderSession(s *trading.Session) (discord.Embed, []discord.ContainerComponent) {
	h.tokens.RevokeSession(s.Key)

	builder := discord.NewEmbedBuilder().
		SetTitle("🔄 Trade: " + stateLabel(s.State)).
		SetColor(stateColor(s.State)).
		AddField(sideTitle(s.SideA), formatOffer(s.SideA), true).
		AddField(sideTitle(s.SideB), formatOffer(s.SideB), true)

	switch s.State {
	case trading.StateConfirming:
		builder.SetFooter(fmt.Sprintf("Both confirmed. Executing in %s unless cancelled.",
			h.manager.GraceDelay().Round(time.Second)), "")
	case trading.StateBothAccepted:
		builder.SetFooter("Both sides accepted. Confirm to lock it in.", "")
	default:
		builder.SetFooter("Any change to an offer resets acceptance on both sides.", "")
	}

	return builder.Build(), h.sessionComponents(s)
}

func (h *TradeHandler) inviteComponents(s *trading.Session) []discord.ContainerComponent {
	accept := h.tokens.Issue(s.Key, actionAcceptInvite, s.Version)
	decline := h.tokens.Issue(s.Key, actionDeclineInvite, s.Version)
	return []discord.ContainerComponent{
		discord.NewActionRow(
			discord.NewSuccessButton("Accept", "/trade/"+accept),
			discord.NewDangerButton("Decline", "/trade/"+decline),
		),
	}
}

func (h *TradeHandler) sessionComponents(s *trading.Session) []discord.ContainerComponent {
	if s.Terminal() {
		return []discord.ContainerComponent{}
	}
	if s.State == trading.StatePendingInvite {
		return h.inviteComponents(s)
	}

	buttons := []discord.InteractiveComponent{
		discord.NewPrimaryButton("Accept", "/trade/"+h.tokens.Issue(s.Key, actionToggleAccept, s.Version)),
	}
	if s.State == trading.StateBothAccepted {
		buttons = append(buttons,
			discord.NewSuccessButton("Confirm", "/trade/"+h.tokens.Issue(s.Key, actionToggleConfirm, s.Version)))
	}
	buttons = append(buttons,
		discord.NewDangerButton("Cancel", "/trade/"+h.tokens.Issue(s.Key, actionCancel, s.Version)))

	return []discord.ContainerComponent{discord.NewActionRow(buttons...)}
}

func sideTitle(side *trading.OfferSide) string {
	marks := ""
	if side.Accepted {
		marks += " ✅"
	}
	if side.Confirmed {
		marks += " 🔒"
	}
	return side.Username + marks
}

func formatOffer(side *trading.OfferSide) string {
	if side.Empty() {
		return "_nothing_"
	}

	var sb strings.Builder
	if coins := side.Currency[trading.CurrencyCoins]; coins > 0 {
		fmt.Fprintf(&sb, "\U0001FA99 %d coins\n", coins)
	}
	if gems := side.Currency[trading.CurrencyGems]; gems > 0 {
		fmt.Fprintf(&sb, "💎 %d gems\n", gems)
	}
	for itemID, qty := range side.Items {
		fmt.Fprintf(&sb, "📦 %s x%d\n", itemID, qty)
	}
	for _, pet := range side.Pets {
		fmt.Fprintf(&sb, "🐾 %s (%s, lvl %d)\n", pet.Name, pet.Species, pet.Level)
	}
	for name, qty := range side.Fumos {
		fmt.Fprintf(&sb, "\U0001F9F8 %s x%d\n", name, qty)
	}
	return sb.String()
}

func stateLabel(state trading.State) string {
	switch state {
	case trading.StatePendingInvite:
		return "Pending Invite"
	case trading.StateActive:
		return "Negotiating"
	case trading.StateBothAccepted:
		return "Both Accepted"
	case trading.StateConfirming:
		return "Confirming"
	case trading.StateCompleted:
		return "Completed"
	case trading.StateCancelled:
		return "Cancelled"
	}
	return string(state)
}

func stateColor(state trading.State) int {
	switch state {
	case trading.StateBothAccepted, trading.StateConfirming:
		return warningColor
	case trading.StateCompleted:
		return successColor
	case trading.StateCancelled:
		return errorColor
	}
	return backgroundColor
}

// tradeErrorMessage maps the trading error taxonomy to user-facing text.
func tradeErrorMessage(err error) string {
	var ierr *trading.InsufficientError
	if errors.As(err, &ierr) {
		return fmt.Sprintf("❌ Not enough %s: you have %d, the offer needs %d.", ierr.Resource, ierr.Have, ierr.Need)
	}
	var perr *trading.PetNotFoundError
	if errors.As(err, &perr) {
		return fmt.Sprintf("❌ You don't own pet %d.", perr.PetID)
	}

	switch {
	case errors.Is(err, trading.ErrTradeNotFound):
		return "❌ That trade no longer exists."
	case errors.Is(err, trading.ErrNotParticipant):
		return "❌ You are not part of this trade."
	case errors.Is(err, trading.ErrSelfTrade):
		return "❌ You cannot trade with yourself."
	case errors.Is(err, trading.ErrBotAccount):
		return "❌ Bots don't want your fumos."
	case errors.Is(err, trading.ErrAlreadyTrading):
		return "❌ One of you is already in a trade. Finish or cancel it first."
	case errors.Is(err, trading.ErrNotBothAccepted):
		return "❌ Both sides must accept before confirming."
	case errors.Is(err, trading.ErrVersionMismatch):
		return "❌ The offer changed since this panel was shown. Check the updated panel."
	case errors.Is(err, trading.ErrInvalidAmount):
		return "❌ That amount is outside the allowed range."
	case errors.Is(err, trading.ErrMaxItemsReached):
		return "❌ Your offer already holds the maximum number of item stacks."
	case errors.Is(err, trading.ErrMaxPetsReached):
		return "❌ Your offer already holds the maximum number of pets."
	case errors.Is(err, trading.ErrMaxFumosReached):
		return "❌ Your offer already holds the maximum number of fumo entries."
	case errors.Is(err, trading.ErrInvalidState):
		return "❌ The trade is not in a state that allows that."
	}
	return "❌ Trade action failed: " + err.Error()
}

func ephemeral(event *handler.CommandEvent, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func ephemeralComponent(event *handler.ComponentEvent, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func intPtr(v int) *int {
	return &v
}
