package common

import (
	"strings"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

func TestDefaultPortConfig(t *testing.T) {
	conf := DefaultPortConfig()

	if conf.WorkerCount != DefaultWorkerCount {
		t.Errorf("Expected %d workers, got %d", DefaultWorkerCount, conf.WorkerCount)
	}
	if conf.DispatchTimeout != DefaultDispatchTimeout {
		t.Errorf("Expected %s timeout, got %s", DefaultDispatchTimeout, conf.DispatchTimeout)
	}
	if !conf.TCP.TCPNoDelay {
		t.Error("Expected TCP no-delay by default")
	}
}

func TestValidateFallsBackToDefaults(t *testing.T) {
	conf := PortConfig{WorkerCount: -3, DispatchTimeout: -time.Second}
	conf.Validate()

	if conf.WorkerCount != DefaultWorkerCount {
		t.Errorf("Expected %d workers after validation, got %d", DefaultWorkerCount, conf.WorkerCount)
	}
	if conf.DispatchTimeout != DefaultDispatchTimeout {
		t.Errorf("Expected %s timeout after validation, got %s", DefaultDispatchTimeout, conf.DispatchTimeout)
	}
	if conf.LogLevel != "info" {
		t.Errorf("Expected info log level after validation, got %s", conf.LogLevel)
	}
}

func TestConfigString(t *testing.T) {
	conf := DefaultPortConfig()
	s := conf.String()

	for _, want := range []string{"DISPATCH", "SOCKET", "TCP", "LOGGING", "16"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected config string to contain %q:\n%s", want, s)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"info":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
		"ERROR":   logger.ERROR,
	}

	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLogLevelPanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for an invalid log level")
		}
	}()
	ParseLogLevel("verbose")
}
