package config

import (
	"testing"
	"time"

	"wordpress-sync/internal/wp"
)

func TestTransportOptionsMapping(t *testing.T) {
	s := &Settings{
		RetryMax:    7,
		BackoffBase: time.Second,
		BackoffCap:  10 * time.Second,
		RateBurst:   5,
		RateRPS:     2.5,
	}
	opts := s.TransportOptions()
	if opts.RetryMax != 7 || opts.BackoffBase != time.Second || opts.BackoffCap != 10*time.Second {
		t.Errorf("retry knobs: %+v", opts)
	}
	if opts.DefaultLimit != (wp.Limit{RPS: 2.5, Burst: 5}) {
		t.Errorf("rate limit: %+v", opts.DefaultLimit)
	}
}

func TestTransportOptionsZeroValuesKeepDefaults(t *testing.T) {
	def := wp.DefaultTransportOptions()
	opts := (&Settings{}).TransportOptions()
	if opts.RetryMax != def.RetryMax || opts.BackoffBase != def.BackoffBase {
		t.Errorf("defaults overridden: %+v", opts)
	}
	if opts.DefaultLimit != def.DefaultLimit {
		t.Errorf("rate limit overridden: %+v", opts.DefaultLimit)
	}
}
