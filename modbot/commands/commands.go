package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	Giveaway,
	Reroll,
	FillGiveaway,
	ForceWinner,
	CancelGiveaway,
	GiveawayStats,
	Mute,
	Unmute,
	MuteList,
	ClearMutes,
	SetupMute,
	CheckMutePerms,
	ReapplyMutePerms,
	Case,
	JailHistory,
	Appeal,
}
