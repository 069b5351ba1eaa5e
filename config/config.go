// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		// Log is the logging config
		Log Logger `yaml:"log"`

		// TaskStore is where the tasks live. Only the expiry and sweeper services
		// touch it, and only through conditional writes.
		TaskStore *TaskStoreConfig `yaml:"taskStore"`

		// TriggerStore is the durable registry of deferred expiry triggers
		TriggerStore *TriggerStoreConfig `yaml:"triggerStore"`

		// ChangeStream is the change data capture stream of the task store
		ChangeStream *ChangeStreamConfig `yaml:"changeStream"`

		// DeliveryQueue is the ordered queue between the router and the processor
		DeliveryQueue *DeliveryQueueConfig `yaml:"deliveryQueue"`

		// Dedup is the optional short window deduplication of delivered records
		Dedup DedupConfig `yaml:"dedup"`

		// Router is the config of the stream router service
		Router RouterConfig `yaml:"router"`

		// Processor is the config of the stream processor service
		Processor ProcessorConfig `yaml:"processor"`

		// ExpiryService is the config of the service that fires triggers and
		// transitions tasks to Expired
		ExpiryService ExpiryServiceConfig `yaml:"expiryService"`

		// Notification is the channel used to tell owners about expired tasks
		Notification NotificationConfig `yaml:"notification"`

		// Sweeper is the optional periodic sweep of overdue Pending tasks
		Sweeper SweeperConfig `yaml:"sweeper"`
	}

	TaskStoreConfig struct {
		// Extension selects the implementation: postgres or dynamodb
		Extension string `yaml:"extension" validate:"required,oneof=postgres dynamodb"`
		// SQL is required when Extension is postgres
		SQL *SQL `yaml:"sql" validate:"required_if=Extension postgres"`
		// DynamoDB is required when Extension is dynamodb
		DynamoDB *DynamoDBConfig `yaml:"dynamodb" validate:"required_if=Extension dynamodb"`
	}

	TriggerStoreConfig struct {
		SQL *SQL `yaml:"sql" validate:"required"`
	}

	ChangeStreamConfig struct {
		// Format is the wire format of the records: native or dynamodb
		// Default is native
		Format string      `yaml:"format" validate:"oneof=native dynamodb"`
		Kafka  KafkaConfig `yaml:"kafka"`
	}

	KafkaConfig struct {
		Brokers []string `yaml:"brokers" validate:"required,min=1"`
		Topic   string   `yaml:"topic" validate:"required"`
		GroupID string   `yaml:"groupId" validate:"required"`
		// MinBytes and MaxBytes are passed to the reader as is
		MinBytes int `yaml:"minBytes"`
		MaxBytes int `yaml:"maxBytes"`
	}

	DeliveryQueueConfig struct {
		Pulsar PulsarConfig `yaml:"pulsar"`
	}

	PulsarConfig struct {
		URL              string `yaml:"url" validate:"required"`
		Topic            string `yaml:"topic" validate:"required"`
		SubscriptionName string `yaml:"subscriptionName" validate:"required"`
		// OperationTimeout is the producer/consumer create and lookup timeout
		// Default is 30 seconds
		OperationTimeout time.Duration `yaml:"operationTimeout"`
		// ConnectionTimeout default is 5 seconds
		ConnectionTimeout time.Duration `yaml:"connectionTimeout"`
		// SendTimeout bounds how long a publish may wait for the broker ack
		// Default is 10 seconds
		SendTimeout time.Duration `yaml:"sendTimeout"`
		// NackRedeliveryDelay is the delay before a negatively acknowledged record is redelivered
		// Default is 5 seconds
		NackRedeliveryDelay time.Duration `yaml:"nackRedeliveryDelay"`
	}

	DedupConfig struct {
		// Redis enables the deduplication window. Leave empty to disable,
		// every processing step is idempotent anyway.
		Redis *RedisConfig `yaml:"redis"`
		// Window is how long a processed record id is remembered
		// Default is 10 minutes
		Window time.Duration `yaml:"window"`
	}

	RedisConfig struct {
		Addr     string `yaml:"addr" validate:"required"`
		Password string `yaml:"password" json:"-"`
		DB       int    `yaml:"db"`
		// KeyPrefix default is "taskexpiry:record:"
		KeyPrefix string `yaml:"keyPrefix"`
	}

	RouterConfig struct {
		// BatchSize is the maximum number of change records routed together
		// Default is 100
		BatchSize int `yaml:"batchSize" validate:"gte=1"`
		// BatchWait is how long to wait to fill a batch after the first record arrived
		// Default is 1 second
		BatchWait time.Duration `yaml:"batchWait"`
		// RetryInterval is the wait before routing a failed batch again
		// Default is 5 seconds
		RetryInterval time.Duration `yaml:"retryInterval"`
	}

	ProcessorConfig struct {
		// Concurrency is the number of workers. Records of the same task always
		// go to the same worker. Default is 10
		Concurrency int `yaml:"concurrency" validate:"gte=1"`
		// WorkerBufferSize default is 100
		WorkerBufferSize int `yaml:"workerBufferSize" validate:"gte=1"`
		// TriggerNamePrefix is prepended to the task id to name its trigger
		// Default is "TaskExpiry-"
		TriggerNamePrefix string `yaml:"triggerNamePrefix"`
		// TriggerGranularity is the precision of trigger fire times. Fire times
		// are rounded up so a trigger never fires before the deadline.
		// Default is 1 minute
		TriggerGranularity time.Duration `yaml:"triggerGranularity"`
		// RegistryTimeout bounds each register/cancel call
		// Default is 5 seconds
		RegistryTimeout time.Duration `yaml:"registryTimeout"`
		// RetryInterval is the wait before processing a failed record again.
		// The records behind it on the same worker wait too. Default is 1 second
		RetryInterval time.Duration `yaml:"retryInterval"`
	}

	ExpiryServiceConfig struct {
		// TriggerQueue is the config for the deferred trigger queue
		TriggerQueue TriggerQueueConfig `yaml:"triggerQueue"`
		// InternalHttpServer is the config for starting a http.Server
		// to serve the internal APIs
		InternalHttpServer HttpServerConfig `yaml:"internalHttpServer"`
		// ClientAddress is the address for the processor service to notify
		// new triggers when it is not running in the same process.
		// Default is derived from InternalHttpServer.Address
		ClientAddress string `yaml:"clientAddress"`
		// StoreTimeout bounds the conditional update. Default is 5 seconds
		StoreTimeout time.Duration `yaml:"storeTimeout"`
		// NotificationTimeout bounds the notification send. Default is 10 seconds
		NotificationTimeout time.Duration `yaml:"notificationTimeout"`
	}

	// HttpServerConfig is the config that will be mapped into http.Server
	HttpServerConfig struct {
		// Address optionally specifies the TCP address for the server to listen on,
		// in the form "host:port". If empty, ":http" (port 80) is used.
		Address string `yaml:"address"`
		// ReadTimeout is the maximum duration for reading the entire
		// request, including the body.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		ReadTimeout time.Duration `yaml:"readTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response.
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		// TLSConfig optionally provides a TLS configuration for use
		// by ServeTLS and ListenAndServeTLS
		TLSConfig *tls.Config `yaml:"tlsConfig"`
		// the rest are less frequently used
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		IdleTimeout       time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
	}

	TriggerQueueConfig struct {
		// MaxPreloadLookAhead defines how far in the future the queue will preload triggers.
		// Together with MaxPreloadPageSize, the preload will load up to MaxPreloadPageSize triggers,
		// or up to triggers' fireAt <= now() + MaxPreloadLookAhead, whichever comes first.
		// After preloading, the queue waits for all the loaded triggers to complete, AND
		// this lookahead to pass, before making the next preload.
		// Triggers registered in between that fire within the window rely on the notifier.
		// There is no atomicity guarantee for the notification, so a missed one
		// delays the firing by up to MaxPreloadLookAhead.
		// Default value is 1 minute.
		MaxPreloadLookAhead time.Duration `yaml:"maxPreloadLookAhead"`
		// MaxPreloadPageSize is the maximum number of triggers a preload will load.
		// Default is 1000.
		MaxPreloadPageSize int32 `yaml:"maxPreloadPageSize"`
		// IntervalJitter is the jitter for the MaxPreloadLookAhead
		// Default value is 5 seconds.
		IntervalJitter time.Duration `yaml:"intervalJitter"`
		// ProcessorConcurrency is the number of goroutines firing triggers. Default is 3.
		ProcessorConcurrency int `yaml:"processorConcurrency"`
		// ProcessorBufferSize is the size of the buffer of due triggers waiting for a goroutine.
		// It's also the size of the buffer receiving completed triggers.
		// Default is 1000.
		ProcessorBufferSize int `yaml:"processorBufferSize"`
		// TriggerNotificationBufferSize is the size of the buffer for the channel that receives
		// new trigger notifications. Default is 1000.
		TriggerNotificationBufferSize int `yaml:"triggerNotificationBufferSize"`
		// RetryPolicy is applied when firing a trigger fails
		RetryPolicy RetryPolicy `yaml:"retryPolicy"`
	}

	RetryPolicy struct {
		// InitialInterval default is 1 second
		InitialInterval time.Duration `yaml:"initialInterval"`
		// BackoffCoefficient default is 2
		BackoffCoefficient float64 `yaml:"backoffCoefficient"`
		// MaximumInterval default is 2 minutes
		MaximumInterval time.Duration `yaml:"maximumInterval"`
		// MaximumAttempts of zero means unlimited
		MaximumAttempts int32 `yaml:"maximumAttempts"`
	}

	NotificationConfig struct {
		// Channel is ses or log. Default is log
		Channel string     `yaml:"channel" validate:"oneof=ses log"`
		SES     *SESConfig `yaml:"ses" validate:"required_if=Channel ses"`
		// DefaultRecipient receives notifications of owners without an entry in Recipients
		DefaultRecipient string `yaml:"defaultRecipient"`
		// Recipients maps owner id to the address notified for that owner
		Recipients map[string]string `yaml:"recipients"`
	}

	SESConfig struct {
		Region    string `yaml:"region" validate:"required"`
		FromEmail string `yaml:"fromEmail" validate:"required,email"`
		// Endpoint overrides the service endpoint, for local stacks
		Endpoint string `yaml:"endpoint"`
	}

	SweeperConfig struct {
		Enabled bool `yaml:"enabled"`
		// Schedule is a cron spec. Default is every 5 minutes
		Schedule string `yaml:"schedule"`
		// PageSize is the maximum number of overdue tasks handled per run
		// Default is 100
		PageSize int32 `yaml:"pageSize"`
	}
)

const (
	ChangeStreamFormatNative   = "native"
	ChangeStreamFormatDynamoDB = "dynamodb"

	TaskStoreExtensionPostgres = "postgres"
	TaskStoreExtensionDynamoDB = "dynamodb"

	NotificationChannelSES = "ses"
	NotificationChannelLog = "log"

	ServiceNameRouter    = "router"
	ServiceNameProcessor = "processor"
	ServiceNameExpiry    = "expiry"
	ServiceNameSweeper   = "sweeper"
)

// NewConfig returns a new decoded Config struct.
// Environment references like ${DB_PASSWORD} are expanded before decoding,
// with an optional .env file next to the working directory loaded first.
func NewConfig(configPath string) (*Config, error) {
	log.Printf("Loading configFile=%v\n", configPath)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseConfig(content)
}

// ParseConfig decodes the yaml content after expanding environment references
func ParseConfig(content []byte) (*Config, error) {
	config := &Config{}
	expanded := os.ExpandEnv(string(content))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) ValidateAndSetDefaults() error {
	if c.ChangeStream != nil && c.ChangeStream.Format == "" {
		c.ChangeStream.Format = ChangeStreamFormatNative
	}
	if c.DeliveryQueue != nil {
		pulsarConfig := &c.DeliveryQueue.Pulsar
		if pulsarConfig.OperationTimeout == 0 {
			pulsarConfig.OperationTimeout = 30 * time.Second
		}
		if pulsarConfig.ConnectionTimeout == 0 {
			pulsarConfig.ConnectionTimeout = 5 * time.Second
		}
		if pulsarConfig.SendTimeout == 0 {
			pulsarConfig.SendTimeout = 10 * time.Second
		}
		if pulsarConfig.NackRedeliveryDelay == 0 {
			pulsarConfig.NackRedeliveryDelay = 5 * time.Second
		}
	}
	if c.TaskStore != nil && c.TaskStore.DynamoDB != nil && c.TaskStore.DynamoDB.StatusIndexName == "" {
		c.TaskStore.DynamoDB.StatusIndexName = "GSI1"
	}
	if c.Dedup.Window == 0 {
		c.Dedup.Window = 10 * time.Minute
	}
	if c.Dedup.Redis != nil && c.Dedup.Redis.KeyPrefix == "" {
		c.Dedup.Redis.KeyPrefix = "taskexpiry:record:"
	}

	routerConfig := &c.Router
	if routerConfig.BatchSize == 0 {
		routerConfig.BatchSize = 100
	}
	if routerConfig.BatchWait == 0 {
		routerConfig.BatchWait = time.Second
	}
	if routerConfig.RetryInterval == 0 {
		routerConfig.RetryInterval = 5 * time.Second
	}

	processorConfig := &c.Processor
	if processorConfig.Concurrency == 0 {
		processorConfig.Concurrency = 10
	}
	if processorConfig.WorkerBufferSize == 0 {
		processorConfig.WorkerBufferSize = 100
	}
	if processorConfig.TriggerNamePrefix == "" {
		processorConfig.TriggerNamePrefix = "TaskExpiry-"
	}
	if processorConfig.TriggerGranularity == 0 {
		processorConfig.TriggerGranularity = time.Minute
	}
	if processorConfig.RegistryTimeout == 0 {
		processorConfig.RegistryTimeout = 5 * time.Second
	}
	if processorConfig.RetryInterval == 0 {
		processorConfig.RetryInterval = time.Second
	}

	expiryConfig := &c.ExpiryService
	if expiryConfig.StoreTimeout == 0 {
		expiryConfig.StoreTimeout = 5 * time.Second
	}
	if expiryConfig.NotificationTimeout == 0 {
		expiryConfig.NotificationTimeout = 10 * time.Second
	}
	triggerQConfig := &expiryConfig.TriggerQueue
	if triggerQConfig.MaxPreloadLookAhead == 0 {
		triggerQConfig.MaxPreloadLookAhead = time.Minute
	}
	if triggerQConfig.MaxPreloadPageSize == 0 {
		triggerQConfig.MaxPreloadPageSize = 1000
	}
	if triggerQConfig.IntervalJitter == 0 {
		triggerQConfig.IntervalJitter = 5 * time.Second
	}
	if triggerQConfig.ProcessorConcurrency == 0 {
		triggerQConfig.ProcessorConcurrency = 3
	}
	if triggerQConfig.ProcessorBufferSize == 0 {
		triggerQConfig.ProcessorBufferSize = 1000
	}
	if triggerQConfig.TriggerNotificationBufferSize == 0 {
		triggerQConfig.TriggerNotificationBufferSize = 1000
	}
	retryPolicy := &triggerQConfig.RetryPolicy
	if retryPolicy.InitialInterval == 0 {
		retryPolicy.InitialInterval = time.Second
	}
	if retryPolicy.BackoffCoefficient == 0 {
		retryPolicy.BackoffCoefficient = 2
	}
	if retryPolicy.MaximumInterval == 0 {
		retryPolicy.MaximumInterval = 2 * time.Minute
	}
	if expiryConfig.ClientAddress == "" && expiryConfig.InternalHttpServer.Address != "" {
		expiryConfig.ClientAddress = "http://" + expiryConfig.InternalHttpServer.Address
	}

	if c.Notification.Channel == "" {
		c.Notification.Channel = NotificationChannelLog
	}

	if c.Sweeper.Schedule == "" {
		c.Sweeper.Schedule = "*/5 * * * *"
	}
	if c.Sweeper.PageSize == 0 {
		c.Sweeper.PageSize = 100
	}

	return validator.New().Struct(c)
}

// ValidateForServices checks that every section needed by the given services is present
func (c *Config) ValidateForServices(services []string) error {
	for _, service := range services {
		var missing []string
		switch service {
		case ServiceNameRouter:
			if c.ChangeStream == nil {
				missing = append(missing, "changeStream")
			}
			if c.DeliveryQueue == nil {
				missing = append(missing, "deliveryQueue")
			}
		case ServiceNameProcessor:
			if c.DeliveryQueue == nil {
				missing = append(missing, "deliveryQueue")
			}
			if c.TriggerStore == nil {
				missing = append(missing, "triggerStore")
			}
		case ServiceNameExpiry:
			if c.TaskStore == nil {
				missing = append(missing, "taskStore")
			}
			if c.TriggerStore == nil {
				missing = append(missing, "triggerStore")
			}
			if c.ExpiryService.InternalHttpServer.Address == "" {
				missing = append(missing, "expiryService.internalHttpServer.address")
			}
		case ServiceNameSweeper:
			if c.TaskStore == nil {
				missing = append(missing, "taskStore")
			}
		default:
			return fmt.Errorf("unknown service %v", service)
		}
		if len(missing) > 0 {
			return fmt.Errorf("service %v requires config sections %v", service, missing)
		}
	}
	return nil
}

// String converts the config object into a string
func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(out)
}
