package utils

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// =========================================================
// Pre-built discordgo interaction responses for convenience
// =========================================================

// Send a hidden reply to the interaction.
func InteractRespHiddenReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: content,
		},
	}); err != nil {
		slog.Warn("can't respond", "content", content, "error", err)
	}
}

// Replace the content of a deferred response
func InteractRespEdit(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("can't edit response", "content", content, "error", err)
	}
}
