/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT             = "5004"
	DEFAULT_SYNC_QUEUE       = "portal_sync"
	DEFAULT_NUMBER_OF_QUEUES = 4
	DEFAULT_MAX_RETRY        = 5
	DEFAULT_CHANNEL          = "portal_sync_changes"
	DEFAULT_LOOKBACK_HOURS   = 24
	DEFAULT_PORTAL_TIMEOUT   = 30
	DEFAULT_MONITORING_PATH  = "/monitoring"
	DEFAULT_CLEANUP_SEC      = 10800
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"PORTALSYNC_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"PORTALSYNC_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PORTALSYNC_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"PORTALSYNC_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"PORTALSYNC_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PORTALSYNC_SERVER_PORT"`

	// Empty allows every origin.
	CorsAllowedOrigins []string `json:"cors_allowed_origins" envconfig:"PORTALSYNC_SERVER_CORS_ALLOWED_ORIGINS"`
}

type DataSourceConfig struct {
	Dns             string        `json:"dns" envconfig:"PORTALSYNC_DATA_SOURCE_DNS"`
	MaxOpenConns    int           `json:"max_open_conns" envconfig:"PORTALSYNC_DATA_SOURCE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" envconfig:"PORTALSYNC_DATA_SOURCE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" envconfig:"PORTALSYNC_DATA_SOURCE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" envconfig:"PORTALSYNC_DATA_SOURCE_CONN_MAX_IDLE_TIME"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PORTALSYNC_REDIS_DNS"`
}

// PortalConfig describes the Collection Portal ingestion endpoint.
type PortalConfig struct {
	Url            string            `json:"url" envconfig:"PORTALSYNC_PORTAL_URL"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" envconfig:"PORTALSYNC_PORTAL_TIMEOUT_SECONDS"`
}

type QueueConfig struct {
	SyncQueue      string `json:"sync_queue" envconfig:"PORTALSYNC_QUEUE_SYNC_QUEUE"`
	NumberOfQueues int    `json:"number_of_queues" envconfig:"PORTALSYNC_QUEUE_NUMBER_OF_QUEUES"`
	Concurrency    int    `json:"concurrency" envconfig:"PORTALSYNC_QUEUE_CONCURRENCY"`
	MaxRetry       int    `json:"max_retry" envconfig:"PORTALSYNC_QUEUE_MAX_RETRY"`
	MonitoringPath string `json:"monitoring_path" envconfig:"PORTALSYNC_QUEUE_MONITORING_PATH"`
}

type ListenerConfig struct {
	Channel             string `json:"channel" envconfig:"PORTALSYNC_LISTENER_CHANNEL"`
	MinReconnectSeconds int    `json:"min_reconnect_seconds" envconfig:"PORTALSYNC_LISTENER_MIN_RECONNECT_SECONDS"`
	MaxReconnectSeconds int    `json:"max_reconnect_seconds" envconfig:"PORTALSYNC_LISTENER_MAX_RECONNECT_SECONDS"`
	PingIntervalSeconds int    `json:"ping_interval_seconds" envconfig:"PORTALSYNC_LISTENER_PING_INTERVAL_SECONDS"`
}

type SweepConfig struct {
	LookbackHours   int  `json:"lookback_hours" envconfig:"PORTALSYNC_SWEEP_LOOKBACK_HOURS"`
	ContinueOnError bool `json:"continue_on_error" envconfig:"PORTALSYNC_SWEEP_CONTINUE_ON_ERROR"`
	LockTTLSeconds  int  `json:"lock_ttl_seconds" envconfig:"PORTALSYNC_SWEEP_LOCK_TTL_SECONDS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PORTALSYNC_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PORTALSYNC_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PORTALSYNC_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PORTALSYNC_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"PORTALSYNC_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"PORTALSYNC_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Portal          PortalConfig     `json:"portal"`
	Queue           QueueConfig      `json:"queue"`
	Listener        ListenerConfig   `json:"listener"`
	Sweep           SweepConfig      `json:"sweep"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("portalsync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called portalsync.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Portal Sync"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if strings.TrimSpace(cnf.Portal.Url) == "" {
		log.Println("Error: Collection portal url is empty. It's a required field.")
		return errors.New("portal url is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Portal.Url = strings.TrimSpace(cnf.Portal.Url)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.DataSource.MaxOpenConns <= 0 {
		cnf.DataSource.MaxOpenConns = 25
	}
	if cnf.DataSource.MaxIdleConns <= 0 {
		cnf.DataSource.MaxIdleConns = 10
	}
	if cnf.DataSource.ConnMaxLifetime <= 0 {
		cnf.DataSource.ConnMaxLifetime = 30 * time.Minute
	}
	if cnf.DataSource.ConnMaxIdleTime <= 0 {
		cnf.DataSource.ConnMaxIdleTime = 5 * time.Minute
	}

	if cnf.Portal.TimeoutSeconds <= 0 {
		cnf.Portal.TimeoutSeconds = DEFAULT_PORTAL_TIMEOUT
	}

	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = DEFAULT_SYNC_QUEUE
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = DEFAULT_NUMBER_OF_QUEUES
	}
	// A single worker keeps deliveries for one entity in commit order.
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 1
	}
	if cnf.Queue.MaxRetry <= 0 {
		cnf.Queue.MaxRetry = DEFAULT_MAX_RETRY
	}
	if cnf.Queue.MonitoringPath == "" {
		cnf.Queue.MonitoringPath = DEFAULT_MONITORING_PATH
	}

	if cnf.Listener.Channel == "" {
		cnf.Listener.Channel = DEFAULT_CHANNEL
	}
	if cnf.Listener.MinReconnectSeconds <= 0 {
		cnf.Listener.MinReconnectSeconds = 10
	}
	if cnf.Listener.MaxReconnectSeconds <= 0 {
		cnf.Listener.MaxReconnectSeconds = 60
	}
	if cnf.Listener.MaxReconnectSeconds < cnf.Listener.MinReconnectSeconds {
		cnf.Listener.MaxReconnectSeconds = cnf.Listener.MinReconnectSeconds
	}
	if cnf.Listener.PingIntervalSeconds <= 0 {
		cnf.Listener.PingIntervalSeconds = 90
	}

	if cnf.Sweep.LookbackHours <= 0 {
		cnf.Sweep.LookbackHours = DEFAULT_LOOKBACK_HOURS
	}
	if cnf.Sweep.LockTTLSeconds <= 0 {
		cnf.Sweep.LockTTLSeconds = 300
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := DEFAULT_CLEANUP_SEC
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// Timeout is the per-request deadline for portal calls.
func (p PortalConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Lookback is the default window of the manual sweep.
func (s SweepConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackHours) * time.Hour
}

func (s SweepConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
