package config

import (
	"errors"
	"strings"
)

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if strings.TrimSpace(c.Gateway.Bind) == "" {
		c.Gateway.Bind = "0.0.0.0:8080"
	}
	if c.Gateway.RequestTimeout <= 0 {
		c.Gateway.RequestTimeout = 60
	}

	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 15
	}
	if c.Fetch.MaxRedirects <= 0 {
		c.Fetch.MaxRedirects = 5
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = 5 * 1024 * 1024
	}
	if c.Fetch.MaxDocBytes <= 0 {
		c.Fetch.MaxDocBytes = 5 * 1024 * 1024
	}

	if c.Browser.MaxConcurrentPages <= 0 {
		c.Browser.MaxConcurrentPages = 3
	}
	if c.Browser.NavTimeoutSec <= 0 {
		c.Browser.NavTimeoutSec = 15
	}

	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "127.0.0.1:6379"
	}
	if c.Cache.LRUSize <= 0 {
		c.Cache.LRUSize = 200
	}

	if c.RateLimit.MainPerMinute <= 0 {
		c.RateLimit.MainPerMinute = 60
	}
	if c.RateLimit.ExtractPerMinute <= 0 {
		c.RateLimit.ExtractPerMinute = 10
	}
	if c.RateLimit.BatchPerMinute <= 0 {
		c.RateLimit.BatchPerMinute = 5
	}
	if c.RateLimit.AsyncPerMinute <= 0 {
		c.RateLimit.AsyncPerMinute = 10
	}

	if c.Jobs.TTLSec <= 0 {
		c.Jobs.TTLSec = 3600
	}

	normalizedProviders := make(map[string]ProviderConfig, len(c.Providers))
	for key, one := range c.Providers {
		providerID := strings.TrimSpace(key)
		if providerID == "" {
			return errors.New("provider id cannot be empty")
		}
		one.ID = providerID
		normalizedProviders[providerID] = one
	}
	c.Providers = normalizedProviders

	normalizedBaas := make(map[string]BaasConfig, len(c.Baas))
	for key, one := range c.Baas {
		id := strings.TrimSpace(key)
		if id == "" {
			return errors.New("baas provider id cannot be empty")
		}
		one.ID = id
		normalizedBaas[id] = one
	}
	c.Baas = normalizedBaas

	return nil
}
