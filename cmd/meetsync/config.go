package main

import "github.com/spf13/viper"

type Config struct {
	Logger    loggerConf
	Port      int
	Store     storeConf
	Providers providersConf
	Invite    inviteConf
	Reminders remindersConf
}

type loggerConf struct {
	Level string
}

type storeConf struct {
	// Driver selects the meeting store: "memory" or "mongo".
	Driver   string
	MongoURI string
	Database string
}

type oauthConf struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
}

type providersConf struct {
	// Fake registers in-memory adapters instead of real ones, for local runs.
	Fake               bool
	Google             oauthConf
	Outlook            oauthConf
	Concurrency        int
	CallTimeoutSeconds int
}

type inviteConf struct {
	MaxAttempts   int
	BackoffMillis int
}

type remindersConf struct {
	Enabled         bool
	IntervalSeconds int
	WindowMinutes   int
	DryRun          bool
}

func LoadConfig(path string) (Config, error) {
	config := Config{}

	viper.SetConfigFile(path)

	err := viper.ReadInConfig()
	if err != nil {
		return config, err
	}

	err = viper.Unmarshal(&config)
	return config, err
}
