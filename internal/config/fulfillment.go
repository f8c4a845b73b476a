package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FulfillmentPolicy tunes the allocation and expiry machinery without a
// restart. The file is optional; defaults cover self-hosted installs.
type FulfillmentPolicy struct {
	ReserveBatchCap  int           `mapstructure:"reserveBatchCap"`
	SweepInterval    time.Duration `mapstructure:"sweepInterval"`
	SweepBatchSize   int           `mapstructure:"sweepBatchSize"`
	RenewalGraceDays int           `mapstructure:"renewalGraceDays"`
}

func DefaultFulfillmentPolicy() FulfillmentPolicy {
	return FulfillmentPolicy{
		ReserveBatchCap:  100,
		SweepInterval:    time.Minute,
		SweepBatchSize:   200,
		RenewalGraceDays: 7,
	}
}

type FulfillmentPolicyHolder struct {
	current atomic.Value // holds FulfillmentPolicy
}

func NewFulfillmentPolicyHolder(cfg Config) (*FulfillmentPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("fulfillment")
	v.SetConfigType("yml")
	if file := strings.TrimSpace(cfg.FulfillmentPolicyFile); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("/var/lib/toolvault/config")
		v.AddConfigPath("/etc/toolvault")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TOOLVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFulfillmentPolicy()
	v.SetDefault("fulfillment.reserveBatchCap", defaults.ReserveBatchCap)
	v.SetDefault("fulfillment.sweepInterval", defaults.SweepInterval)
	v.SetDefault("fulfillment.sweepBatchSize", defaults.SweepBatchSize)
	v.SetDefault("fulfillment.renewalGraceDays", defaults.RenewalGraceDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy FulfillmentPolicy
	if err := v.UnmarshalKey("fulfillment", &policy); err != nil {
		return nil, err
	}
	if err := validateFulfillmentPolicy(policy); err != nil {
		return nil, err
	}

	holder := &FulfillmentPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FulfillmentPolicy
		if err := v.UnmarshalKey("fulfillment", &updated); err != nil {
			log.Printf("[fulfillment-policy] reload failed: %v", err)
			return
		}
		if err := validateFulfillmentPolicy(updated); err != nil {
			log.Printf("[fulfillment-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fulfillment-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *FulfillmentPolicyHolder) Get() FulfillmentPolicy {
	return h.current.Load().(FulfillmentPolicy)
}

func validateFulfillmentPolicy(policy FulfillmentPolicy) error {
	if policy.ReserveBatchCap <= 0 {
		return errors.New("fulfillment.reserveBatchCap must be positive")
	}
	if policy.SweepInterval <= 0 {
		return errors.New("fulfillment.sweepInterval must be positive")
	}
	if policy.SweepBatchSize <= 0 {
		return errors.New("fulfillment.sweepBatchSize must be positive")
	}
	if policy.RenewalGraceDays < 0 {
		return errors.New("fulfillment.renewalGraceDays cannot be negative")
	}
	return nil
}
