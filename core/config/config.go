package config

import (
	"reflect"
	"strings"

	"filemirror/core/logger"
	"filemirror/core/remote"
	"filemirror/core/server"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MappingConfig describes one watched-directory pair. A mapping mirrors to
// the remote backend when the remote roots are set, and to a local pointer
// tree when TargetRoot is set; both may be active at once.
type MappingConfig struct {
	// LocalRoot is the local directory tree to watch.
	LocalRoot string `mapstructure:"local_root"`
	// RemoteSourceRoot is the backend path under which the watched tree is
	// already visible to the backend (the copy source projection).
	RemoteSourceRoot string `mapstructure:"remote_source_root"`
	// RemoteDestinationRoot is the backend path the tree is mirrored to.
	RemoteDestinationRoot string `mapstructure:"remote_destination_root"`
	// TargetRoot is the local root of the pointer-file tree.
	TargetRoot string `mapstructure:"target_root"`
	// MediaPrefix is the virtual path prefix written into pointer files.
	MediaPrefix string `mapstructure:"media_prefix"`
}

// SyncConfig holds the global mirror toggles and timings.
type SyncConfig struct {
	// DebounceDelaySeconds is the event debounce window for remote mappings.
	DebounceDelaySeconds float64 `mapstructure:"debounce_delay_seconds" default:"1"`
	// PointerDebounceDelaySeconds is the debounce window for pointer-file
	// mappings, where churn is expected.
	PointerDebounceDelaySeconds float64 `mapstructure:"pointer_debounce_delay_seconds" default:"120"`
	// FileStableTimeSeconds is how long a file's size must stay constant
	// before it is considered fully written.
	FileStableTimeSeconds float64 `mapstructure:"file_stable_time_seconds" default:"5"`
	// PollIntervalSeconds is the size-poll interval of the stability check.
	PollIntervalSeconds float64 `mapstructure:"poll_interval_seconds" default:"1"`
	// MediaFileTypes is a semicolon-separated glob list of media files that
	// get pointer files instead of byte copies.
	MediaFileTypes string `mapstructure:"media_file_types" default:"*.mp4;*.mkv"`
	// IgnoreFileTypes is a semicolon-separated list of extensions whose
	// create/delete events are dropped (provisional marker files).
	IgnoreFileTypes string `mapstructure:"ignore_file_types" default:".mp"`
	// SubtitleExtensions is a semicolon-separated list of subtitle
	// extensions that get the copy-with-refresh fast path.
	SubtitleExtensions string `mapstructure:"subtitle_extensions" default:".srt;.ass;.sub;.vtt"`
	// OverwriteExisting overwrites pointer files and mirrored copies that
	// already exist at the target.
	OverwriteExisting bool `mapstructure:"overwrite_existing" default:"false"`
	// EnableCleanup propagates deletions to the mirror targets.
	EnableCleanup bool `mapstructure:"enable_cleanup" default:"false"`
	// FullSyncOnStartup walks each mapping once at startup before watching.
	FullSyncOnStartup bool `mapstructure:"full_sync_on_startup" default:"true"`
	// UseDirectLink writes absolute URLs into pointer files.
	UseDirectLink bool `mapstructure:"use_direct_link" default:"false"`
	// BaseURL is the URL prefix for direct-link pointer files.
	BaseURL string `mapstructure:"base_url" default:""`
}

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP status server.
	Server server.Config `mapstructure:"server"`
	// Remote holds configuration for the remote backend.
	Remote remote.Config `mapstructure:"remote"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Sync holds the global mirror toggles and timings.
	Sync SyncConfig `mapstructure:"sync"`
	// Mappings is the list of watched-directory pairs.
	Mappings []MappingConfig `mapstructure:"mappings"`
}

// LoadConfig loads configuration from the optional YAML config file,
// environment variables and a .env file. The mapping list can only be
// expressed in the config file; scalar settings may be overridden via env.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// 2. Optional YAML config file (holds the mappings list)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Slices (the mappings list) have no scalar default
		if field.Type.Kind() == reflect.Slice {
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
