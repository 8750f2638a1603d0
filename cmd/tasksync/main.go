package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tazhate/tasksync/config"
	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/notify"
	"github.com/tazhate/tasksync/internal/service"
	"github.com/tazhate/tasksync/internal/storage"
)

// app holds what every subcommand needs; it is built once the config is known
type app struct {
	cfg    *config.Config
	store  *storage.Storage
	sinks  *notify.Multi
	issues *service.IssueService
	tasks  *service.TaskService
}

var a = &app{}

var rootCmd = &cobra.Command{
	Use:   "tasksync",
	Short: "Sync local tasks with CalDAV todos and events",
	Long: `tasksync mirrors VTODOs and upcoming VEVENTs from CalDAV calendars into
a local task list, and writes local edits back to the server.

Configuration comes from the environment (DATABASE_PATH, TIMEZONE,
POLL_SPEC, TELEGRAM_BOT_TOKEN, ...). Providers are stored in the database;
add them with "tasksync providers add" or "tasksync providers import".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return a.init()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a.store != nil {
			a.store.Close()
		}
	},
}

func (a *app) init() error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	a.store = store

	// the Telegram bot joins the sinks later, in serve
	a.sinks = &notify.Multi{notify.Log{}}

	client := caldav.NewClient(cfg.ClientID, cfg.HTTPTimeout)
	a.issues = service.NewIssueService(service.NewCalDAVService(client, a.sinks))
	a.tasks = service.NewTaskService(store, a.issues)
	return nil
}

func main() {
	rootCmd.AddCommand(serveCmd, providersCmd)
	rootCmd.AddCommand(taskCommands()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
