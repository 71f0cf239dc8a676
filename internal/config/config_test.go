package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WORKFLOW_REMINDER_DEDUPE", "true")
	t.Setenv("ADVISORY_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.GRPC.Addr != ":9090" {
		t.Fatalf("unexpected addrs %q %q", cfg.HTTP.Addr, cfg.GRPC.Addr)
	}
	if cfg.Workflow.ApplyingPad != 3500*time.Millisecond || cfg.Workflow.GrievancePad != 2*time.Second {
		t.Fatalf("unexpected pads %+v", cfg.Workflow)
	}
	if !cfg.Workflow.ReminderDedupe {
		t.Fatal("dedupe switch not read from env")
	}
	if cfg.Advisory.Timeout != 5*time.Second || cfg.Advisory.CacheTTL != time.Hour {
		t.Fatalf("unexpected advisory config %+v", cfg.Advisory)
	}
	if cfg.AMQP.Queue != "citizen.notifications" || cfg.Scheduler.RenewalSpec != "0 9 * * *" {
		t.Fatalf("unexpected defaults %+v %+v", cfg.AMQP, cfg.Scheduler)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.yaml")
	body := `
env: prod
http:
  addr: ":9999"
store:
  driver: redis
redis:
  addr: "cache:6379"
workflow:
  applying_pad: 1s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "prod" || cfg.HTTP.Addr != ":9999" || cfg.Redis.Addr != "cache:6379" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Workflow.ApplyingPad != time.Second {
		t.Fatalf("applying pad = %v", cfg.Workflow.ApplyingPad)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Fatalf("defaults should fill unset yaml keys, got %v", cfg.HTTP.ReadTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Store: Store{Driver: DriverMemory}}, true},
		{"redis without addr", Config{Store: Store{Driver: DriverRedis}}, false},
		{"postgres with dsn", Config{Store: Store{Driver: DriverPostgres}, Postgres: Postgres{DSN: "postgres://x"}}, true},
		{"postgres without dsn", Config{Store: Store{Driver: DriverPostgres}}, false},
		{"unknown driver", Config{Store: Store{Driver: "etcd"}}, false},
		{"negative pad", Config{Store: Store{Driver: DriverMemory}, Workflow: Workflow{ApplyingPad: -time.Second}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}
