package scheduler

import (
	"context"
	"log/slog"
	"time"
	"timeblock/src-server/handler"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

// Send every user a DM with today's agenda once the local clock passes
// DISCORD_AGENDA_TIME. Blocks until graceful shutdown; returns right away when
// the bot or the agenda time isn't configured.
func DailyAgenda(as *utils.AppState) {
	sendAt, ok := as.Config.GetDiscordAgendaTime()
	if !ok || as.DgSession == nil {
		return
	}
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	lastSent := ""
	for {
		select {
		case <-gracefulShutdownCh:
			return
		case <-ticker.C:
		}
		now := time.Now().In(as.Config.GetLocation())
		if !AgendaDue(now, sendAt, lastSent) {
			continue
		}
		lastSent = model.FormatDate(now)
		sendAgendas(as, model.Day(now))
	}
}

// Whether the agenda of now's date is still to be sent: the clock is past
// sendAt (minutes after midnight) and lastSent is another date
func AgendaDue(now time.Time, sendAt int, lastSent string) bool {
	return lastSent != model.FormatDate(now) && now.Hour()*60+now.Minute() >= sendAt
}

func sendAgendas(as *utils.AppState, today time.Time) {
	ctx := context.Background()
	userIDs, err := as.Store.ListUserIDs(ctx)
	if err != nil {
		slog.Error("DailyAgenda: can't list users", "error", err)
		return
	}

	sent := 0
	for _, userID := range userIDs {
		// viewing today materializes its occurrences
		blocks, err := as.Engine.GetByDate(ctx, userID, today)
		if err != nil {
			slog.Error("DailyAgenda: can't get agenda", "userID", userID, "error", err)
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		channel, err := as.DgSession.UserChannelCreate(userID)
		if err != nil {
			slog.Warn("DailyAgenda: can't open DM", "userID", userID, "error", err)
			continue
		}
		startTimer := time.Now()
		if _, err := as.DgSession.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
			Content: handler.AgendaSummary(len(blocks), today, today),
			Embeds:  handler.AgendaEmbeds(blocks, today, today),
		}); err != nil {
			slog.Error("DailyAgenda: can't send message", "userID", userID, "error", err)
			continue
		}
		as.MetricChans.Observe(as.MetricChans.DiscordSendMessage, time.Since(startTimer))
		sent++
	}
	slog.Info("daily agenda sent", "date", model.FormatDate(today), "users", len(userIDs), "sent", sent)
}
