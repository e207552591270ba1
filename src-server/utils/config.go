package utils

import (
	"log/slog"
	"os"
	"strconv"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"
)

type Config struct {
	port         string
	databasePath string
	location     *time.Location

	metricCollectionInterval time.Duration
	maxRangeDays             int

	inboxDefaultStartTime       string
	inboxDefaultDurationMinutes int

	discordGuildID  string
	discordAppToken string
	discordClientId string
	// minutes after midnight, -1 when unset
	discordAgendaTime int
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		databasePath: func() string {
			databasePath := os.Getenv("DATABASE_PATH")
			if databasePath == "" {
				databasePath = "./sqlite.db"
			}
			slog.Debug("env", "DATABASE_PATH", databasePath)
			return databasePath
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		metricCollectionInterval: func() time.Duration {
			interval := os.Getenv("METRIC_COLLECTION_INTERVAL")
			if interval == "" {
				interval = "15s"
			}
			duration, err := time.ParseDuration(interval)
			if err != nil || duration <= 0 {
				slog.Error("invalid METRIC_COLLECTION_INTERVAL", "value", interval, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", duration)
			return duration
		}(),
		maxRangeDays: func() int {
			maxRangeDays := os.Getenv("MAX_RANGE_DAYS")
			if maxRangeDays == "" {
				return recurrence.DefaultConfig.MaxRangeDays
			}
			n, err := strconv.Atoi(maxRangeDays)
			if err != nil || n <= 0 {
				slog.Error("invalid MAX_RANGE_DAYS", "value", maxRangeDays, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "MAX_RANGE_DAYS", n)
			return n
		}(),

		inboxDefaultStartTime: func() string {
			startTime := os.Getenv("INBOX_DEFAULT_START_TIME")
			if startTime == "" {
				return recurrence.DefaultInboxDefaults.StartTime
			}
			if _, err := model.ParseClock(startTime); err != nil {
				slog.Error("invalid INBOX_DEFAULT_START_TIME", "value", startTime, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "INBOX_DEFAULT_START_TIME", startTime)
			return startTime
		}(),
		inboxDefaultDurationMinutes: func() int {
			duration := os.Getenv("INBOX_DEFAULT_DURATION_MINUTES")
			if duration == "" {
				return recurrence.DefaultInboxDefaults.DurationMinutes
			}
			n, err := strconv.Atoi(duration)
			if err != nil || n <= 0 {
				slog.Error("invalid INBOX_DEFAULT_DURATION_MINUTES", "value", duration, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "INBOX_DEFAULT_DURATION_MINUTES", n)
			return n
		}(),

		// the Discord bot is optional, all three must be set to enable it
		discordGuildID: func() string {
			discordGuildID := os.Getenv("DISCORD_GUILD_ID")
			slog.Debug("env", "DISCORD_GUILD_ID", discordGuildID)
			return discordGuildID
		}(),
		discordAppToken: func() string {
			discordAppToken := os.Getenv("DISCORD_APP_TOKEN")
			if len(discordAppToken) > 3 {
				slog.Debug("env", "DISCORD_APP_TOKEN", discordAppToken[0:3]+"...")
			}
			return discordAppToken
		}(),
		discordClientId: func() string {
			discordClientId := os.Getenv("DISCORD_CLIENT_ID")
			slog.Debug("env", "DISCORD_CLIENT_ID", discordClientId)
			return discordClientId
		}(),
		discordAgendaTime: func() int {
			agendaTime := os.Getenv("DISCORD_AGENDA_TIME")
			if agendaTime == "" {
				return -1
			}
			minutes, err := model.ParseClock(agendaTime)
			if err != nil {
				slog.Error("invalid DISCORD_AGENDA_TIME", "value", agendaTime, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "DISCORD_AGENDA_TIME", agendaTime)
			return minutes
		}(),
	}
}

// Get PORT env
func (c *Config) GetPort() string {
	return c.port
}

// Get DATABASE_PATH env
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get METRIC_COLLECTION_INTERVAL env
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get MAX_RANGE_DAYS env
func (c *Config) GetMaxRangeDays() int {
	return c.maxRangeDays
}

// Get DISCORD_GUILD_ID env
func (c *Config) GetDiscordGuildID() string {
	return c.discordGuildID
}

// Get DISCORD_APP_TOKEN env
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_CLIENT_ID env
func (c *Config) GetDiscordClientId() string {
	return c.discordClientId
}

// Get DISCORD_AGENDA_TIME env as minutes after midnight, false when unset
func (c *Config) GetDiscordAgendaTime() (int, bool) {
	return c.discordAgendaTime, c.discordAgendaTime >= 0
}

func (c *Config) DiscordEnabled() bool {
	return c.discordAppToken != "" && c.discordClientId != "" && c.discordGuildID != ""
}

// Today's calendar date in the configured timezone
func (c *Config) Today() time.Time {
	return model.Day(time.Now().In(c.location))
}

// Recurrence engine settings derived from env
func (c *Config) EngineConfig(recorder recurrence.Recorder) recurrence.Config {
	return recurrence.Config{
		Recorder: recorder,
		InboxDefaults: recurrence.InboxDefaults{
			StartTime:       c.inboxDefaultStartTime,
			DurationMinutes: c.inboxDefaultDurationMinutes,
			CategoryID:      model.FocusCategoryID,
		},
		MaxRangeDays: c.maxRangeDays,
	}
}
