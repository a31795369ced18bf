package commands

import (
	"github.com/disgoorg/disgo/discord"

	"github.com/fumocord/fumobot/fumobot/commands/economy"
)

var Commands = []discord.ApplicationCommandCreate{}

func init() {
	Commands = append(Commands, Balance, Roll, Coinflip, Collection, Inventory, Daily, Leaderboard)
	Commands = append(Commands, economy.Commands...)
}
