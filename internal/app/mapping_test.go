package app

import (
	"testing"
	"time"

	"remindbot/internal/config"
)

func TestMapResolverConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Reminders.Timezone = "UTC"
	cfg.Reminders.DefaultHour = 9

	rc, err := mapResolverConfig(cfg)
	if err != nil {
		t.Fatalf("mapResolverConfig: %v", err)
	}
	if rc.Location != time.UTC || rc.DefaultHour != 9 {
		t.Errorf("resolver config = %+v", rc)
	}

	cfg.Reminders.Timezone = "Mars/Olympus"
	if _, err := mapResolverConfig(cfg); err == nil {
		t.Error("bad timezone accepted")
	}

	cfg.Reminders.Timezone = ""
	rc, err = mapResolverConfig(cfg)
	if err != nil || rc.Location != time.Local {
		t.Errorf("empty timezone = (%+v, %v), want local", rc, err)
	}
}

func TestMapServiceAndDeliveryConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Reminders.Retention = "72h"
	cfg.Reminders.SweepEvery = "@every 30m"
	cfg.Delivery.RatePerSec = 5
	cfg.Delivery.SendTimeout = "3s"

	sc, err := mapServiceConfig(cfg)
	if err != nil {
		t.Fatalf("mapServiceConfig: %v", err)
	}
	if sc.Retention != 72*time.Hour || sc.SweepSpec != "@every 30m" {
		t.Errorf("service config = %+v", sc)
	}

	dc, err := mapDeliveryConfig(cfg)
	if err != nil {
		t.Fatalf("mapDeliveryConfig: %v", err)
	}
	if dc.RatePerSec != 5 || dc.SendTimeout != 3*time.Second {
		t.Errorf("delivery config = %+v", dc)
	}

	cfg.Reminders.Retention = "soon"
	if _, err := mapServiceConfig(cfg); err == nil {
		t.Error("bad retention accepted")
	}
}

func TestMapServiceConfigSweepSpec(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		sweep   string
		want    string
		wantErr bool
	}{
		{name: "bare duration becomes @every", sweep: "1h", want: "@every 1h0m0s"},
		{name: "cron descriptor kept", sweep: "@every 30m", want: "@every 30m"},
		{name: "five-field spec kept", sweep: "0 * * * *", want: "0 * * * *"},
		{name: "empty means default", sweep: "", want: ""},
		{name: "negative duration", sweep: "-5m", wantErr: true},
		{name: "zero duration", sweep: "0s", wantErr: true},
		{name: "garbage", sweep: "hourly-ish", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{}
			cfg.Reminders.SweepEvery = tc.sweep

			sc, err := mapServiceConfig(cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sweep_every %q accepted, got spec %q", tc.sweep, sc.SweepSpec)
				}
				return
			}
			if err != nil {
				t.Fatalf("mapServiceConfig: %v", err)
			}
			if sc.SweepSpec != tc.want {
				t.Errorf("SweepSpec = %q, want %q", sc.SweepSpec, tc.want)
			}
		})
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, enabled, err := mapStorageConfig(cfg); enabled || err != nil {
		t.Errorf("nil storage = enabled=%v err=%v", enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "none"}
	if _, enabled, _ := mapStorageConfig(cfg); enabled {
		t.Error("driver none should disable storage")
	}

	cfg.Storage = &config.StorageConfig{Driver: "file", Path: "./audit"}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled || sc.Driver != "file" {
		t.Errorf("file = (%+v, %v, %v)", sc, enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Error("sqlite without path accepted")
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite", Path: "./audit.db", BusyTimeout: "2s"}
	sc, enabled, err = mapStorageConfig(cfg)
	if err != nil || !enabled || sc.BusyTimeout != 2*time.Second {
		t.Errorf("sqlite = (%+v, %v, %v)", sc, enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "postgres"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestMapRouterConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Reminders.CommandPrefix = "!"
	cfg.Reminders.AutoCapture = true
	cfg.Reminders.ConfirmTTL = "30s"
	cfg.Telegram.OwnerUserIDs = []int64{1, 2}

	rc, err := mapRouterConfig(cfg, time.UTC)
	if err != nil {
		t.Fatalf("mapRouterConfig: %v", err)
	}
	if rc.CommandPrefix != "!" || !rc.AutoCapture || rc.ConfirmTTL != 30*time.Second {
		t.Errorf("router config = %+v", rc)
	}
	if len(rc.Owners) != 2 || rc.Location != time.UTC {
		t.Errorf("router config = %+v", rc)
	}
}
