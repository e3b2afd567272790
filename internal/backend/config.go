package backend

import (
	"fmt"

	"accounting/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	driver := Driver(appConfig.DatabaseDriver)
	if !driver.IsValid() {
		return Config{}, fmt.Errorf("invalid database driver in config: %s", appConfig.DatabaseDriver)
	}

	return Config{
		Driver: driver,
		DSN:    appConfig.DSN(),

		AMQPURL:           appConfig.AMQPURL,
		AMQPExchange:      appConfig.AMQPExchange,
		AMQPEventsQueue:   appConfig.AMQPEventsQueue,
		AMQPReminderQueue: appConfig.AMQPReminderQueue,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,
		GoogleOAuthClientFile: appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:  appConfig.GoogleOAuthTokenFile,

		MemoryExport: appConfig.IsDevelopment(),
	}, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Driver.IsValid() {
		return fmt.Errorf("invalid database driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("a data source is required for the %s driver", c.Driver)
	}
	if c.AMQPURL != "" && (c.AMQPEventsQueue == "" || c.AMQPReminderQueue == "") {
		return fmt.Errorf("AMQP queue names are required when AMQP is enabled")
	}
	return nil
}

func (c Config) sheetsEnabled() bool {
	if c.GoogleSpreadsheetID == "" {
		return false
	}
	return c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != "" ||
		(c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != "")
}
