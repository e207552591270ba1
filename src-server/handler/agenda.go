package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

func Agenda(as *utils.AppState) {
	id := "agenda"
	as.AddAppCmdHandler(id, agendaHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Show your time blocks for a day.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "YYYY-MM-DD or something like \"next friday\", defaults to today",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "days",
				Description: "How many days to show, defaults to 1",
				MinValue:    func() *float64 { v := 1.0; return &v }(),
				MaxValue:    14,
			},
		},
	})
}

// The planner user a Discord interaction acts for
func interactionUserID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func agendaHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		// response to the original request
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags: discordgo.MessageFlagsEphemeral,
			},
		}); err != nil {
			slog.Warn("can't respond", "handler", "agenda", "content", "deferring", "error", err)
		}

		// #region - parse options
		start := as.Config.Today()
		days := 1
		for _, opt := range i.ApplicationCommandData().Options {
			switch opt.Name {
			case "date":
				parsed, err := utils.ParseDateInput(as.When, opt.StringValue(), time.Now(), as.Config.GetLocation())
				if err != nil {
					utils.InteractRespEdit(s, i, fmt.Sprintf("Can't parse date\n```\n%s\n```", err.Error()))
					return nil
				}
				start = parsed
			case "days":
				days = int(opt.IntValue())
			}
		}
		end := start.AddDate(0, 0, days-1)
		// #endregion

		blocks, err := as.Engine.GetByDateRange(context.Background(), interactionUserID(i), start, end)
		if err != nil {
			utils.InteractRespEdit(s, i, fmt.Sprintf("Can't get your agenda\n```\n%s\n```", err.Error()))
			return err
		}

		// #region - compose & send the message
		embeds := AgendaEmbeds(blocks, start, end)
		content := AgendaSummary(len(blocks), start, end)
		startTimer := time.Now()
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &content,
			Embeds:  &embeds,
		}); err != nil {
			slog.Warn("can't respond", "handler", "agenda", "content", "agenda", "error", err)
		}
		as.MetricChans.Observe(as.MetricChans.DiscordSendMessage, time.Since(startTimer))
		// #endregion

		return nil
	}
}

func AgendaSummary(count int, start, end time.Time) string {
	span := model.FormatDate(start)
	if !end.Equal(start) {
		span += " to " + model.FormatDate(end)
	}
	switch count {
	case 0:
		return "Nothing scheduled for " + span
	case 1:
		return "1 block for " + span
	}
	return fmt.Sprintf("%d blocks for %s", count, span)
}

// One embed per day with blocks; Discord caps a message at 10 embeds
func AgendaEmbeds(blocks []model.TimeBlock, start, end time.Time) []*discordgo.MessageEmbed {
	byDate := make(map[string][]model.TimeBlock)
	for _, block := range blocks {
		byDate[block.Date] = append(byDate[block.Date], block)
	}
	embeds := make([]*discordgo.MessageEmbed, 0)
	for day := model.Day(start); !day.After(model.Day(end)) && len(embeds) < 10; day = day.AddDate(0, 0, 1) {
		dayBlocks := byDate[model.FormatDate(day)]
		if len(dayBlocks) == 0 {
			continue
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(dayBlocks))
		for _, block := range dayBlocks {
			fields = append(fields, blockField(block))
		}
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title:  day.Format("Monday, 2 January 2006"),
			Fields: fields,
		})
	}
	return embeds
}

func blockField(block model.TimeBlock) *discordgo.MessageEmbedField {
	var name strings.Builder
	if block.IsCompleted {
		name.WriteString("~~")
	}
	name.WriteString(block.StartTime + " " + block.Title)
	if block.IsCompleted {
		name.WriteString("~~")
	}
	if block.IsUrgent {
		name.WriteString(" (urgent)")
	}

	value := fmt.Sprintf("%d min", block.DurationMinutes)
	if block.Subtitle != nil && *block.Subtitle != "" {
		value = *block.Subtitle + " | " + value
	}
	if block.RecurrenceRuleID != nil {
		value += " | repeats"
	}
	return &discordgo.MessageEmbedField{Name: name.String(), Value: value}
}
