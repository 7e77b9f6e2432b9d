package utils

import "time"

const (
	SuccessColor = 0x57F287
	ErrorColor   = 0xED4245
	WarningColor = 0xFEE75C
	InfoColor    = 0x5865F2

	DefaultQueryTimeout = 10 * time.Second
)
