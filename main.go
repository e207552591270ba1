package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"timeblock/src-server/handler"
	"timeblock/src-server/metric"
	"timeblock/src-server/route"
	"timeblock/src-server/scheduler"
	"timeblock/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	level := slog.LevelDebug
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		if err := level.UnmarshalText([]byte(value)); err != nil {
			slog.Warn("invalid LOG_LEVEL, using debug", "value", value)
			level = slog.LevelDebug
		}
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	as := utils.NewAppState()
	as.InitEngine(metric.NewRecorder(nil))
	metric.Init(as)

	if as.DgSession != nil {
		startDiscord(as)
		defer as.DgSession.Close()
		go scheduler.DailyAgenda(as)
	} else {
		slog.Info("discord env not set, bot disabled")
	}

	// http server
	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	route.Blocks(muxer, as)
	route.Inbox(muxer, as)
	route.Rules(muxer, as)
	route.Ical(muxer, as)
	server := &http.Server{
		Addr:              ":" + as.Config.GetPort(),
		Handler:           route.LogMiddleware(muxer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan
	slog.Info("Gracefully shutting down...")

	if err := server.Close(); err != nil {
		slog.Warn("can't close HTTP server", "error", err)
	}
	as.GracefulShutdown()
}

func startDiscord(as *utils.AppState) {
	// injecting interaction handlers into appCmdInfo, appCmdHandler in AppState
	handler.Agenda(as)
	handler.Ping(as)

	// tell discordgo how to handle interactions from Discord (w/ appCmdHandler)
	as.DgSession.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			slog.Debug("ignored interaction", "type", i.Type)
			return
		}
		name := i.ApplicationCommandData().Name
		cmdHandler, ok := as.GetAppCmdHandler(name)
		if !ok {
			utils.InteractRespHiddenReply(s, i, "Unknown command")
			return
		}
		if err := cmdHandler(s, i); err != nil {
			slog.Error("handler error", "command", name, "error", err.Error())
		}
	})

	// open a connection to Discord
	if err := as.DgSession.Open(); err != nil {
		slog.Error("can't open discord connection", "error", err)
		os.Exit(1)
	}

	// tell Discord what commands we have (w/ appCmdInfo)
	if _, err := as.DgSession.ApplicationCommandBulkOverwrite(
		as.Config.GetDiscordClientId(),
		as.Config.GetDiscordGuildID(),
		func() []*discordgo.ApplicationCommand {
			var cmds []*discordgo.ApplicationCommand
			as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) {
				cmds = append(cmds, v)
			})
			return cmds
		}()); err != nil {
		slog.Error("can't create slash commands", "error", err.Error())
	}

	// cleanup appCmdInfo from memory
	as.NukeAppCmdInfo()
	runtime.GC()

	slog.Info("number of guilds", "guilds", len(as.DgSession.State.Guilds))
}
