package interfaces

import (
	"context"

	"github.com/pressline/encoderd/internal/config"
	"github.com/pressline/encoderd/internal/monitor"
	"github.com/pressline/encoderd/internal/registers"
	"github.com/pressline/encoderd/internal/s7"
	"github.com/pressline/encoderd/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State           string        `json:"state"`
	PLCState        string        `json:"plc_state"`
	MonitorRunning  bool          `json:"monitor_running"`
	SessionID       string        `json:"session_id,omitempty"`
	Stats           monitor.Stats `json:"stats"`
	TrackedRegister string        `json:"tracked_register"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	Client() *s7.Client
	Monitor() *monitor.Monitor
	Profiles() *registers.Loader
	StartMonitoring(ctx context.Context) error
	StopMonitoring(ctx context.Context) error
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
