// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Configs struct {
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppPort               int     `mapstructure:"app_port"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	StatsdAddress         string  `mapstructure:"statsd_address"`
	CorsAllowOrigins      string  `mapstructure:"cors_allow_origins"`

	StorageProvider       string `mapstructure:"storage_provider"`
	StorageTimeoutSeconds int    `mapstructure:"storage_timeout_seconds"`
	GoogleCredentialsJSON string `mapstructure:"google_credentials_json"`
	GCSBucketName         string `mapstructure:"gcs_bucket_name"`
	GCSObjectName         string `mapstructure:"gcs_object_name"`
	S3AccessKeyID         string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey     string `mapstructure:"s3_secret_access_key"`
	S3Region              string `mapstructure:"s3_region"`
	S3Endpoint            string `mapstructure:"s3_endpoint"`
	LocalStorageRoot      string `mapstructure:"local_storage_root"`

	DatasetLabelColumn string `mapstructure:"dataset_label_column"`
	ModelNEstimators   int    `mapstructure:"model_n_estimators"`
	ModelRandomSeed    int64  `mapstructure:"model_random_seed"`
	ModelJobs          int    `mapstructure:"model_jobs"`
	SelectionTopK      int    `mapstructure:"selection_top_k"`

	LogStoreBackend     string `mapstructure:"log_store_backend"`
	LogStoreQueueSize   int    `mapstructure:"log_store_queue_size"`
	LogStoreTimeoutMs   int    `mapstructure:"log_store_timeout_ms"`
	MongoURI            string `mapstructure:"mongo_uri"`
	MongoDatabase       string `mapstructure:"mongo_database"`
	MongoCollection     string `mapstructure:"mongo_collection"`
	ScyllaContactPoints string `mapstructure:"storage_scylla_contact_points"`
	ScyllaKeyspace      string `mapstructure:"storage_scylla_keyspace"`
	ScyllaPort          int    `mapstructure:"storage_scylla_port"`
	ScyllaTimeoutMs     int    `mapstructure:"storage_scylla_timeout_ms"`
	ScyllaUsername      string `mapstructure:"storage_scylla_username"`
	ScyllaPassword      string `mapstructure:"storage_scylla_password"`
}

// StorageTimeout is the per-fetch dataset download deadline.
func (c *Configs) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutSeconds) * time.Second
}

// LogStoreTimeout bounds a single log insert.
func (c *Configs) LogStoreTimeout() time.Duration {
	return time.Duration(c.LogStoreTimeoutMs) * time.Millisecond
}

// AllowedOrigins splits CorsAllowOrigins on commas.
func (c *Configs) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CorsAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

var defaults = map[string]any{
	"app_name":                  "flowselect",
	"app_env":                   "local",
	"app_log_level":             "INFO",
	"app_port":                  8000,
	"app_metric_sampling_rate":  1.0,
	"cors_allow_origins":        "*",
	"storage_provider":          "gcs",
	"storage_timeout_seconds":   120,
	"local_storage_root":        ".",
	"dataset_label_column":      "calss",
	"model_n_estimators":        50,
	"model_random_seed":         42,
	"selection_top_k":           10,
	"log_store_backend":         "mongo",
	"log_store_queue_size":      64,
	"log_store_timeout_ms":      5000,
	"mongo_database":            "feature_selection_db",
	"mongo_collection":          "analysis_logs",
	"storage_scylla_keyspace":   "flowselect",
	"storage_scylla_port":       9042,
	"storage_scylla_timeout_ms": 2000,
}

// Load reads the configuration. Environment variables take precedence over
// envFile, which is skipped when empty or missing.
func Load(envFile string) (*Configs, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	bindEnvVars(v)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Configs{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App configuration
	v.BindEnv("app_name", "APP_NAME")
	v.BindEnv("app_env", "APP_ENV")
	v.BindEnv("app_log_level", "APP_LOG_LEVEL")
	v.BindEnv("app_port", "APP_PORT", "PORT")
	v.BindEnv("app_metric_sampling_rate", "APP_METRIC_SAMPLING_RATE")
	v.BindEnv("statsd_address", "STATSD_ADDRESS")
	v.BindEnv("cors_allow_origins", "CORS_ALLOW_ORIGINS")

	// Dataset storage
	v.BindEnv("storage_provider", "STORAGE_PROVIDER")
	v.BindEnv("storage_timeout_seconds", "STORAGE_TIMEOUT_SECONDS")
	v.BindEnv("google_credentials_json", "GOOGLE_CREDENTIALS_JSON")
	v.BindEnv("gcs_bucket_name", "GCS_BUCKET_NAME")
	v.BindEnv("gcs_object_name", "GCS_OBJECT_NAME")
	v.BindEnv("s3_access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3_secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3_region", "S3_REGION")
	v.BindEnv("s3_endpoint", "S3_ENDPOINT")
	v.BindEnv("local_storage_root", "LOCAL_STORAGE_ROOT")

	// Model
	v.BindEnv("dataset_label_column", "DATASET_LABEL_COLUMN")
	v.BindEnv("model_n_estimators", "MODEL_N_ESTIMATORS")
	v.BindEnv("model_random_seed", "MODEL_RANDOM_SEED")
	v.BindEnv("model_jobs", "MODEL_JOBS")
	v.BindEnv("selection_top_k", "SELECTION_TOP_K")

	// Analysis log store
	v.BindEnv("log_store_backend", "LOG_STORE_BACKEND")
	v.BindEnv("log_store_queue_size", "LOG_STORE_QUEUE_SIZE")
	v.BindEnv("log_store_timeout_ms", "LOG_STORE_TIMEOUT_MS")
	v.BindEnv("mongo_uri", "MONGO_URI")
	v.BindEnv("mongo_database", "MONGO_DATABASE")
	v.BindEnv("mongo_collection", "MONGO_COLLECTION")
	v.BindEnv("storage_scylla_contact_points", "STORAGE_SCYLLA_CONTACT_POINTS")
	v.BindEnv("storage_scylla_keyspace", "STORAGE_SCYLLA_KEYSPACE")
	v.BindEnv("storage_scylla_port", "STORAGE_SCYLLA_PORT")
	v.BindEnv("storage_scylla_timeout_ms", "STORAGE_SCYLLA_TIMEOUT_MS")
	v.BindEnv("storage_scylla_username", "STORAGE_SCYLLA_USERNAME")
	v.BindEnv("storage_scylla_password", "STORAGE_SCYLLA_PASSWORD")
}
