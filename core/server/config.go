package server

// Config holds configuration for the HTTP status server.
type Config struct {
	// Enabled toggles the status server.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is an optional secret required to access the status API.
	ApiKey string `mapstructure:"api_key" default:""`
}
