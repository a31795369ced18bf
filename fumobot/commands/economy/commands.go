package economy

import "github.com/disgoorg/disgo/discord"

const (
	successColor    = 0x57F287
	warningColor    = 0xFEE75C
	errorColor      = 0xED4245
	backgroundColor = 0x2B2D31
)

var Commands = []discord.ApplicationCommandCreate{
	TradeCommand,
}
