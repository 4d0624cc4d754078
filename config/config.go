// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowqio/flowq/common/uuid"
)

type (
	Config struct {
		// Log is the logging config
		Log Logger `yaml:"log"`

		// Database is the relational store that FlowQ persists tasks,
		// groups, schedules and leases into. Only SQL is supported.
		Database DatabaseConfig `yaml:"database"`

		// ApiService is the orchestrator HTTP facade config
		ApiService ApiServiceConfig `yaml:"apiService"`

		// AsyncService is the config for the background half:
		// timeout sweeper, schedule ticker and abort fan-out
		AsyncService AsyncServiceConfig `yaml:"asyncService"`

		// Runners is the config for the runner registry and abort fan-out
		Runners RunnersConfig `yaml:"runners"`

		// MessageQueue optionally relays task lifecycle events across
		// orchestrator instances so long-polls parked on another instance
		// wake up promptly. Purely a latency optimization.
		MessageQueue *MessageQueueConfig `yaml:"messageQueue"`
	}

	DatabaseConfig struct {
		// SQL is the SQL database config
		SQL *SQL `yaml:"sql"`
	}

	ApiServiceConfig struct {
		// HttpServer is the config for starting http.Server
		HttpServer HttpServerConfig `yaml:"httpServer"`
		// DefaultLongPollTimeout is applied when a caller asks to wait
		// without giving its own budget.
		// If not specified then the default value of 10 seconds is used.
		DefaultLongPollTimeout time.Duration `yaml:"defaultLongPollTimeout"`
		// MaxLongPollTimeout caps any caller-provided long-poll budget.
		// If not specified then the default value of 60 seconds is used.
		MaxLongPollTimeout time.Duration `yaml:"maxLongPollTimeout"`
	}

	AsyncServiceConfig struct {
		// Sweep is the config for the background timeout sweeper
		Sweep SweepConfig `yaml:"sweep"`
		// ScheduleTick is the config for the leader-elected recurring
		// schedule ticking loop
		ScheduleTick ScheduleTickConfig `yaml:"scheduleTick"`
	}

	// HttpServerConfig is the config that will be mapped into http.Server
	HttpServerConfig struct {
		// Address optionally specifies the TCP address for the server to listen on,
		// in the form "host:port". If empty, ":http" (port 80) is used.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		Address string `yaml:"address"`
		// ReadTimeout is the maximum duration for reading the entire
		// request, including the body.
		ReadTimeout time.Duration `yaml:"readTimeout"`
		// WriteTimeout is the maximum duration before timing out
		// writes of the response. It must be longer than MaxLongPollTimeout,
		// otherwise held long-polls are cut off mid-wait.
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		// TLSConfig optionally provides a TLS configuration for use
		// by ServeTLS and ListenAndServeTLS
		TLSConfig *tls.Config `yaml:"tlsConfig"`
		// the rest are less frequently used
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		IdleTimeout       time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
	}

	SweepConfig struct {
		// Interval is how often the sweeper scans for timed out tasks.
		// If not specified then the default value of 10 seconds is used.
		Interval time.Duration `yaml:"interval"`
		// IntervalJitter is added randomly to the interval so that
		// multiple instances don't sweep in lockstep.
		// If not specified then the default value of 1 second is used.
		IntervalJitter time.Duration `yaml:"intervalJitter"`
		// BatchSize bounds how many rows a single sweep pass touches.
		// If not specified then the default value of 1000 is used.
		BatchSize int `yaml:"batchSize"`
		// GroupIdleWindow is how long a group can go without a new task
		// (and without being updated) before the sweeper hard-deletes it.
		// If not specified then the default value of 14 days is used.
		GroupIdleWindow time.Duration `yaml:"groupIdleWindow"`
		// TaskRetention is how long terminated tasks are kept before the
		// sweeper hard-deletes them. The most recent task of a schedule is
		// always kept.
		// If not specified then the default value of 7 days is used.
		TaskRetention time.Duration `yaml:"taskRetention"`
	}

	ScheduleTickConfig struct {
		// Interval is the ticking cadence. It must be shorter than LeaseTTL
		// so an elected leader renews its lease before it lapses.
		// If not specified then the default value of 1 second is used.
		Interval time.Duration `yaml:"interval"`
		// LeaseTTL is how long a leader lease is valid without renewal.
		// If not specified then the default value of 15 seconds is used.
		LeaseTTL time.Duration `yaml:"leaseTTL"`
		// LeaderKey identifies the lease row that schedule-ticking nodes
		// compete for. All instances of one deployment must share it.
		// If not specified then the default value "schedule-ticker" is used.
		LeaderKey string `yaml:"leaderKey"`
		// NodeId identifies this process in the lease row.
		// If not specified a random UUID is generated at startup.
		NodeId string `yaml:"nodeId"`
		// BatchSize bounds how many due schedules a single tick processes.
		// If not specified then the default value of 100 is used.
		BatchSize int `yaml:"batchSize"`
	}

	RunnersConfig struct {
		// Redis is the shared key-value store holding abort flags.
		// A runner consults the flag even if the abort RPC never reached it.
		Redis RedisConfig `yaml:"redis"`
		// AbortFlagTTL is the TTL for abort flags.
		// If not specified then the default value of 5 minutes is used.
		AbortFlagTTL time.Duration `yaml:"abortFlagTTL"`
		// RegistrationTTL is how long a runner registration is considered
		// live without renewal.
		// If not specified then the default value of 1 minute is used.
		RegistrationTTL time.Duration `yaml:"registrationTTL"`
		// RequestTimeout bounds a single abort RPC to a runner.
		// If not specified then the default value of 5 seconds is used.
		RequestTimeout time.Duration `yaml:"requestTimeout"`
	}

	RedisConfig struct {
		// Address is the host:port of the redis server
		Address string `yaml:"address"`
		// Password is optional
		Password string `yaml:"password"`
		// DB is the redis database number
		DB int `yaml:"db"`
	}

	MessageQueueConfig struct {
		// Pulsar is the only supported message queue for now
		Pulsar *PulsarMQConfig `yaml:"pulsar"`
	}

	PulsarMQConfig struct {
		// URL is the pulsar service url, e.g. pulsar://localhost:6650
		URL string `yaml:"url"`
		// TaskEventsTopic is the topic that task lifecycle events are
		// relayed through
		TaskEventsTopic string `yaml:"taskEventsTopic"`
		// SubscriptionPrefix prefixes the per-instance exclusive
		// subscription name
		SubscriptionPrefix string `yaml:"subscriptionPrefix"`
	}
)

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	log.Printf("Loading configFile=%v\n", configPath)

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) ValidateAndSetDefaults() error {
	if c.Database.SQL == nil {
		return fmt.Errorf("sql config is required")
	}
	sql := c.Database.SQL
	if anyAbsent(sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User) {
		return fmt.Errorf("some required configs are missing: sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User")
	}
	apiCfg := &c.ApiService
	if apiCfg.DefaultLongPollTimeout == 0 {
		apiCfg.DefaultLongPollTimeout = 10 * time.Second
	}
	if apiCfg.MaxLongPollTimeout == 0 {
		apiCfg.MaxLongPollTimeout = 60 * time.Second
	}
	if apiCfg.DefaultLongPollTimeout > apiCfg.MaxLongPollTimeout {
		return fmt.Errorf("defaultLongPollTimeout cannot exceed maxLongPollTimeout")
	}
	sweepCfg := &c.AsyncService.Sweep
	if sweepCfg.Interval == 0 {
		sweepCfg.Interval = 10 * time.Second
	}
	if sweepCfg.IntervalJitter == 0 {
		sweepCfg.IntervalJitter = time.Second
	}
	if sweepCfg.BatchSize == 0 {
		sweepCfg.BatchSize = 1000
	}
	if sweepCfg.GroupIdleWindow == 0 {
		sweepCfg.GroupIdleWindow = 14 * 24 * time.Hour
	}
	if sweepCfg.TaskRetention == 0 {
		sweepCfg.TaskRetention = 7 * 24 * time.Hour
	}
	tickCfg := &c.AsyncService.ScheduleTick
	if tickCfg.Interval == 0 {
		tickCfg.Interval = time.Second
	}
	if tickCfg.LeaseTTL == 0 {
		tickCfg.LeaseTTL = 15 * time.Second
	}
	if tickCfg.Interval >= tickCfg.LeaseTTL {
		return fmt.Errorf("scheduleTick.interval must be shorter than scheduleTick.leaseTTL")
	}
	if tickCfg.LeaderKey == "" {
		tickCfg.LeaderKey = "schedule-ticker"
	}
	if tickCfg.NodeId == "" {
		tickCfg.NodeId = uuid.MustNewUUID()
	}
	if tickCfg.BatchSize == 0 {
		tickCfg.BatchSize = 100
	}
	runnersCfg := &c.Runners
	if runnersCfg.AbortFlagTTL == 0 {
		runnersCfg.AbortFlagTTL = 5 * time.Minute
	}
	if runnersCfg.RegistrationTTL == 0 {
		runnersCfg.RegistrationTTL = time.Minute
	}
	if runnersCfg.RequestTimeout == 0 {
		runnersCfg.RequestTimeout = 5 * time.Second
	}
	if c.MessageQueue != nil && c.MessageQueue.Pulsar != nil {
		pulsarCfg := c.MessageQueue.Pulsar
		if pulsarCfg.URL == "" {
			return fmt.Errorf("messageQueue.pulsar.url cannot be empty")
		}
		if pulsarCfg.TaskEventsTopic == "" {
			pulsarCfg.TaskEventsTopic = "flowq-task-events"
		}
		if pulsarCfg.SubscriptionPrefix == "" {
			pulsarCfg.SubscriptionPrefix = "flowq-orchestrator"
		}
	}
	return nil
}

func anyAbsent(strs ...string) bool {
	for _, s := range strs {
		if s == "" {
			return true
		}
	}
	return false
}

// String converts the config object into a string
func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(out)
}
