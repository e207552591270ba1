package utils

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"
	"timeblock/src-server/store"

	"github.com/bwmarrin/discordgo"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config      *Config
	RawDB       *sql.DB
	BunDB       *bun.DB
	Store       *store.Store
	Engine      *recurrence.Engine
	When        *when.Parser
	MetricChans *Metric

	// nil unless the Discord env vars are set
	DgSession *discordgo.Session
	// will be send to Discord
	AppCmdInfo map[string]*discordgo.ApplicationCommand
	// handling commands from Discord WSAPI
	AppCmdHandler map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error

	AppCloseSignalChan chan os.Signal

	shutdownMu            sync.Mutex
	gracefulShutdownChans []chan struct{}
}

func NewAppState() *AppState {
	as := &AppState{}

	// init maps
	as.AppCmdInfo = make(map[string]*discordgo.ApplicationCommand)
	as.AppCmdHandler = make(map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error)
	as.AppCloseSignalChan = make(chan os.Signal, 1)
	as.MetricChans = NewMetric()

	// date parser
	as.When = NewWhen()

	// env
	as.Config = NewConfig()

	// database
	var err error
	as.RawDB, err = sql.Open(sqliteshim.ShimName, "file:"+as.Config.GetDatabasePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	as.RawDB.SetMaxIdleConns(8)

	as.BunDB = bun.NewDB(as.RawDB, sqlitedialect.New())
	as.BunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))
	as.BunDB.AddQueryHook(NewQueryLatencyHook(as.MetricChans))
	if err := model.CreateSchema(context.Background(), as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}
	as.Store = store.New(as.BunDB)

	// discord
	if as.Config.DiscordEnabled() {
		as.DgSession, err = discordgo.New("Bot " + as.Config.GetDiscordAppToken())
		if err != nil {
			slog.Error("can't create discord session", "error", err)
			os.Exit(1)
		}
	}

	return as
}

// Build the recurrence engine; recorder may be nil
func (as *AppState) InitEngine(recorder recurrence.Recorder) {
	as.Engine = recurrence.NewEngine(as.Store, as.Config.EngineConfig(recorder))
}

func NewWhen() *when.Parser {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return parser
}

// Register a slash command
func (as *AppState) AddAppCmdHandler(name string, handler func(s *discordgo.Session, i *discordgo.InteractionCreate) error) {
	as.AppCmdHandler[name] = handler
}

func (as *AppState) GetAppCmdHandler(name string) (func(s *discordgo.Session, i *discordgo.InteractionCreate) error, bool) {
	handler, ok := as.AppCmdHandler[name]
	return handler, ok
}

// Describe a slash command to Discord
func (as *AppState) AddAppCmdInfo(name string, info *discordgo.ApplicationCommand) {
	as.AppCmdInfo[name] = info
}

func (as *AppState) IterateAppCmdInfo(fn func(name string, info *discordgo.ApplicationCommand)) {
	for name, info := range as.AppCmdInfo {
		fn(name, info)
	}
}

// Drop command descriptions once they were sent to Discord
func (as *AppState) NukeAppCmdInfo() {
	as.AppCmdInfo = make(map[string]*discordgo.ApplicationCommand)
}

// A channel closed when the app shuts down
func (as *AppState) CreateGracefulShutdownChan() chan struct{} {
	as.shutdownMu.Lock()
	defer as.shutdownMu.Unlock()
	ch := make(chan struct{})
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, ch)
	return ch
}

// Signal every background goroutine and close the database
func (as *AppState) GracefulShutdown() {
	as.shutdownMu.Lock()
	for _, ch := range as.gracefulShutdownChans {
		close(ch)
	}
	as.gracefulShutdownChans = nil
	as.shutdownMu.Unlock()

	if as.BunDB != nil {
		if err := as.BunDB.Close(); err != nil {
			slog.Warn("can't close database", "error", err)
		}
	}
}
