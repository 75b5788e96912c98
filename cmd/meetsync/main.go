package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	internalapp "meetsync/internal/app"
	internalevents "meetsync/internal/events"
	internallogger "meetsync/internal/logger"
	internalprovider "meetsync/internal/provider"
	internalhttp "meetsync/internal/server/http"
	internalstore "meetsync/internal/store"
	internalworker "meetsync/internal/worker"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/meetsync/config.json", "Path to configuration file")
}

func main() {
	flag.Parse()

	config, err := LoadConfig(configFile)
	if err != nil {
		fmt.Println("Error loading config: ", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	logg := internallogger.New(config.Logger.Level, nil)

	st, err := buildStore(ctx, config, logg)
	if err != nil {
		logg.Error("failed to build store: " + err.Error())
		os.Exit(1)
	}

	connections := internalprovider.NewMemoryConnections()
	registry := buildProviders(config, connections, logg)

	hub := internalevents.NewHub(logg)
	go hub.Run(ctx)

	app := internalapp.New(logg, st, connections, registry, hub, internalapp.Options{
		Retry: internalapp.RetryPolicy{
			MaxAttempts: config.Invite.MaxAttempts,
			BaseDelay:   time.Duration(config.Invite.BackoffMillis) * time.Millisecond,
		},
		ProviderConcurrency: config.Providers.Concurrency,
		CallTimeout:         time.Duration(config.Providers.CallTimeoutSeconds) * time.Second,
	})

	if config.Reminders.Enabled {
		reminders := internalworker.NewReminders(logg, st, hub,
			time.Duration(config.Reminders.IntervalSeconds)*time.Second,
			time.Duration(config.Reminders.WindowMinutes)*time.Minute,
			config.Reminders.DryRun)
		go reminders.Run(ctx)
	}

	server := internalhttp.New(logg, app, hub, "", config.Port)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logg.Error("failed to stop http server: " + err.Error())
		}
	}()

	logg.Infof("Service listening on port: %d", config.Port)

	if err := server.Start(ctx); err != nil {
		logg.Error("failed to start http server: " + err.Error())
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}

func buildStore(ctx context.Context, config Config, logg *internallogger.Logger) (internalstore.Store, error) {
	if config.Store.Driver != "mongo" {
		logg.Info("using in-memory meeting store")
		return internalstore.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.Store.MongoURI))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}

	database := config.Store.Database
	if database == "" {
		database = "meetsync"
	}

	logg.Infof("using mongo meeting store, database=%s", database)

	return internalstore.NewMongoStore(client.Database(database)), nil
}

func buildProviders(
	config Config,
	connections internalprovider.ConnectionStore,
	logg *internallogger.Logger,
) *internalprovider.Registry {
	registry := internalprovider.NewRegistry()

	if config.Providers.Fake {
		logg.Warn("registering fake calendar providers")
		registry.Register(internalprovider.NewFake("google"))
		registry.Register(internalprovider.NewFake("outlook"))
		return registry
	}

	timeout := time.Duration(config.Providers.CallTimeoutSeconds) * time.Second

	if config.Providers.Google.Enabled {
		registry.Register(internalprovider.NewGoogleAdapter(connections, internalprovider.GoogleOptions{
			ClientID:     config.Providers.Google.ClientID,
			ClientSecret: config.Providers.Google.ClientSecret,
			Timeout:      timeout,
		}))
	}

	if config.Providers.Outlook.Enabled {
		registry.Register(internalprovider.NewOutlookAdapter(connections, internalprovider.OutlookOptions{
			ClientID:     config.Providers.Outlook.ClientID,
			ClientSecret: config.Providers.Outlook.ClientSecret,
			Timeout:      timeout,
		}))
	}

	return registry
}
