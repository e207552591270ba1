package handler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func Ping(as *utils.AppState) {
	id := "ping"
	as.AddAppCmdHandler(id, pingHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Check the planner is alive and what it thinks today is.",
	})
}

func pingHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		ctx := context.Background()
		today := as.Config.Today()
		userID := interactionUserID(i)

		dbTimer := time.Now()
		blocks, err := as.Engine.GetByDate(ctx, userID, today)
		if err != nil {
			utils.InteractRespHiddenReply(s, i, fmt.Sprintf("Can't read today's blocks\n```\n%s\n```", err.Error()))
			return err
		}
		dbLatency := time.Since(dbTimer)
		items, err := as.Store.ListInboxItems(ctx, userID)
		if err != nil {
			utils.InteractRespHiddenReply(s, i, fmt.Sprintf("Can't read your inbox\n```\n%s\n```", err.Error()))
			return err
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		embeds := []*discordgo.MessageEmbed{
			{
				Title: "Pong!",
				Footer: &discordgo.MessageEmbedFooter{
					Text: as.Config.GetLocation().String(),
				},
				Fields: []*discordgo.MessageEmbedField{
					{
						Name:   "Gateway",
						Value:  fmt.Sprintf("%dms", s.HeartbeatLatency().Milliseconds()),
						Inline: true,
					},
					{
						Name:   "Agenda lookup",
						Value:  fmt.Sprintf("%dms", dbLatency.Milliseconds()),
						Inline: true,
					},
					{
						Name:   "Memory",
						Value:  fmt.Sprintf("%.2fMB", float64(m.Sys)/1024/1024),
						Inline: true,
					},
					{
						Name:  model.FormatDate(today),
						Value: fmt.Sprintf("%d blocks, %d inbox items", len(blocks), len(items)),
					},
				},
			},
		}

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags:  discordgo.MessageFlagsEphemeral,
				Embeds: embeds,
			},
		}); err != nil {
			slog.Warn("can't respond", "handler", "ping", "error", err)
		}
		as.MetricChans.Observe(as.MetricChans.DiscordSendMessage, time.Since(startTimer))
		return nil
	}
}
