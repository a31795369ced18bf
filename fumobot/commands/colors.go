package commands

const (
	successColor    = 0x57F287
	errorColor      = 0xED4245
	backgroundColor = 0x2B2D31
)
