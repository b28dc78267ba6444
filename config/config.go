// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Discord       DiscordConfiguration
	Roles         RolesConfiguration
	Verify        VerifyConfiguration
	Reconcile     ReconcileConfiguration
	Sheets        SheetsConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
}

// ServerConfiguration stores the admin API settings
type ServerConfiguration struct {
	Port       string
	AdminToken string
}

// DiscordConfiguration stores the chat-service connection and intake surface
type DiscordConfiguration struct {
	Token             string
	GuildID           string
	IntakeMode        string // "dm" or "channel"
	IntakeChannelID   string
	OperatorChannelID string
	AdminRole         string
}

// RolesConfiguration stores the privilege names managed by the engine
type RolesConfiguration struct {
	Premium  []string
	Baseline string
}

// VerifyConfiguration stores verification-path settings
type VerifyConfiguration struct {
	MaxAttempts int
}

// ReconcileConfiguration stores the cancellation poller settings
type ReconcileConfiguration struct {
	Interval time.Duration
}

// SheetsConfiguration stores the record-store identifiers
type SheetsConfiguration struct {
	SpreadsheetID      string
	MembersRange       string
	CancellationsRange string
	CredentialsFile    string
	RequestTimeout     time.Duration
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Enabled bool
	Addr    string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("discord.intakeMode", "dm")
	viper.SetDefault("roles.premium", []string{"PrivateChannelAccess"})
	viper.SetDefault("roles.baseline", "Community")
	viper.SetDefault("verify.maxAttempts", 3)
	viper.SetDefault("reconcile.interval", "60s")
	viper.SetDefault("sheets.membersRange", "Members!A2:E")
	viper.SetDefault("sheets.cancellationsRange", "Cancellations!A2:C")
	viper.SetDefault("sheets.requestTimeout", "15s")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("log.dir", "logging")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetStringSlice retrieves a list value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
