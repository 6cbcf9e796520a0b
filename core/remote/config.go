package remote

// Config holds configuration for the remote backend.
type Config struct {
	// Provider selects the backend implementation (alist or s3).
	Provider string `mapstructure:"provider" default:"alist"`
	// Endpoint is the URL of the remote service.
	Endpoint string `mapstructure:"endpoint" default:"http://localhost:5244"`
	// Username is the login name (alist provider).
	Username string `mapstructure:"username" default:""`
	// Password is the login password (alist provider).
	Password string `mapstructure:"password" default:""`
	// AccessKey is the access key ID (s3 provider).
	AccessKey string `mapstructure:"access_key" default:""`
	// SecretKey is the secret access key (s3 provider).
	SecretKey string `mapstructure:"secret_key" default:""`
	// Bucket is the bucket that holds the mirrored tree (s3 provider).
	Bucket string `mapstructure:"bucket" default:"mirror"`
	// Region is the bucket location (s3 provider).
	Region string `mapstructure:"region" default:""`
	// UseSSL indicates whether to use SSL/TLS for connections (s3 provider).
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// TimeoutSeconds is the per-call timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

const (
	ProviderAList = "alist"
	ProviderS3    = "s3"
)

// IsValidProvider checks if the configured provider is valid.
func (c Config) IsValidProvider() bool {
	switch c.Provider {
	case ProviderAList, ProviderS3:
		return true
	default:
		return false
	}
}
