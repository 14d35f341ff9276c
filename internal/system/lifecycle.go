package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressline/encoderd/internal/api/rest"
	"github.com/pressline/encoderd/internal/api/websocket"
	"github.com/pressline/encoderd/internal/auth"
	"github.com/pressline/encoderd/internal/config"
	"github.com/pressline/encoderd/internal/interfaces"
	"github.com/pressline/encoderd/internal/monitor"
	"github.com/pressline/encoderd/internal/registers"
	"github.com/pressline/encoderd/internal/s7"
	"github.com/pressline/encoderd/internal/storage"
	"go.uber.org/zap"
)

// LifecycleManager wires the PLC client, the monitor, persistence and
// the API surfaces together and controls startup/shutdown ordering.
type LifecycleManager struct {
	config      *config.Config
	storage     *storage.PostgresClient
	client      *s7.Client
	monitor     *monitor.Monitor
	profiles    *registers.Loader
	wsHub       *websocket.Hub
	authService *auth.Service
	restServer  *rest.Server
	logger      *zap.Logger

	stateMu      sync.RWMutex
	currentState SystemState

	events       chan monitor.Event
	pumpWg       sync.WaitGroup
	shutdownOnce sync.Once
}

// NewLifecycleManager builds the full object graph. store may be nil,
// in which case readings are not persisted.
func NewLifecycleManager(store *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	endpoint := s7.Endpoint{
		Address: cfg.PLC.Address,
		Rack:    cfg.PLC.Rack,
		Slot:    cfg.PLC.Slot,
	}
	transport := s7.NewTCPTransport(endpoint, cfg.PLC.Timeout)
	client := s7.NewClient(endpoint, transport)

	mon := monitor.New(client, monitor.Config{
		Register: s7.RegisterAddress{
			Block:  cfg.Register.Block,
			Offset: cfg.Register.Offset,
			Length: cfg.Register.Length,
		},
		Interval:    cfg.Monitor.Interval,
		MaxRetries:  cfg.Monitor.MaxRetries,
		RetryDelay:  cfg.Monitor.RetryDelay,
		MaxDuration: cfg.Monitor.MaxDuration,
		Min:         cfg.Monitor.MinValue,
		Max:         cfg.Monitor.MaxValue,
	}, logger.Named("monitor"))

	profiles, err := registers.NewLoader(cfg.Profiles.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile loader: %w", err)
	}

	authService := auth.NewService(
		cfg.Auth.GetJWTSecret(),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.MachineTokenHashes,
	)

	wsHub := websocket.NewHub(logger.Named("websocket"))

	lm := &LifecycleManager{
		config:       cfg,
		storage:      store,
		client:       client,
		monitor:      mon,
		profiles:     profiles,
		wsHub:        wsHub,
		authService:  authService,
		logger:       logger,
		currentState: StateInitializing,
	}

	lm.restServer = rest.NewServer(cfg, lm, logger.Named("rest"), wsHub, authService)

	return lm, nil
}

func (lm *LifecycleManager) Config() *config.Config           { return lm.config }
func (lm *LifecycleManager) Storage() *storage.PostgresClient { return lm.storage }
func (lm *LifecycleManager) Client() *s7.Client               { return lm.client }
func (lm *LifecycleManager) Monitor() *monitor.Monitor        { return lm.monitor }
func (lm *LifecycleManager) Profiles() *registers.Loader      { return lm.profiles }

// Start brings the system up: websocket hub, event pump, monitor (when
// auto-start is configured) and the REST API.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting encoderd",
		zap.String("plc_address", lm.config.PLC.Address),
		zap.String("register", lm.config.Register.Name))

	lm.setState(StateInitializing)

	go lm.wsHub.Run()

	lm.events = lm.monitor.Subscribe()
	lm.pumpWg.Add(1)
	go lm.pumpEvents()

	if lm.config.Monitor.AutoStart {
		if err := lm.StartMonitoring(context.Background()); err != nil {
			lm.logger.Warn("Monitor auto-start failed", zap.Error(err))
		}
	}

	if err := lm.restServer.Start(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)
	lm.logger.Info("System started successfully")

	return nil
}

// StartMonitoring starts the polling loop and opens a session record.
func (lm *LifecycleManager) StartMonitoring(ctx context.Context) error {
	if err := lm.monitor.Start(); err != nil {
		return err
	}

	if lm.storage != nil {
		err := lm.storage.StartSession(ctx, lm.monitor.SessionID(),
			lm.config.Register.Name, time.Now())
		if err != nil {
			lm.logger.Warn("Failed to persist session start", zap.Error(err))
		}
	}

	return nil
}

// StopMonitoring stops the polling loop and finalizes the session
// record with its counters.
func (lm *LifecycleManager) StopMonitoring(ctx context.Context) error {
	sessionID := lm.monitor.SessionID()
	lm.monitor.Stop()

	stats := lm.monitor.Stats()
	lm.wsHub.Broadcast(websocket.NewMonitorStatsMessage(stats))

	if lm.storage != nil && sessionID != uuid.Nil {
		err := lm.storage.CloseSession(ctx, sessionID, stats.Total, stats.Succeeded)
		if err != nil {
			lm.logger.Warn("Failed to persist session end", zap.Error(err))
		}
	}

	return nil
}

// pumpEvents fans monitor events out to the websocket hub and storage.
// This is the only consumer of the monitor's event stream; neither the
// hub nor storage ever touch the client directly.
func (lm *LifecycleManager) pumpEvents() {
	defer lm.pumpWg.Done()

	lastState := lm.client.State()

	for ev := range lm.events {
		if state := lm.client.State(); state != lastState {
			lm.wsHub.Broadcast(websocket.NewStateChangeMessage(state))
			lastState = state
		}

		if ev.Err != nil {
			lm.wsHub.Broadcast(websocket.NewReadErrorMessage(ev.SessionID.String(), ev.Err))
			continue
		}

		lm.wsHub.Broadcast(websocket.NewReadingMessage(
			ev.SessionID.String(), *ev.Reading, lm.config.Register.Unit, ev.OutOfRange))

		if lm.storage != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := lm.storage.InsertReading(ctx, storage.ReadingRecord{
				ID:         uuid.New(),
				SessionID:  ev.SessionID,
				Register:   lm.config.Register.Name,
				Value:      ev.Reading.Value,
				OutOfRange: ev.OutOfRange,
				CapturedAt: ev.Reading.Timestamp,
			})
			cancel()
			if err != nil {
				lm.logger.Error("Failed to persist reading", zap.Error(err))
			}
		}
	}
}

// GetCurrentStatus snapshots the system for the status endpoint.
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	status := interfaces.SystemStatus{
		State:           lm.getState().String(),
		PLCState:        lm.client.State().String(),
		MonitorRunning:  lm.monitor.IsRunning(),
		Stats:           lm.monitor.Stats(),
		TrackedRegister: lm.config.Register.Name,
	}

	if id := lm.monitor.SessionID(); id != uuid.Nil {
		status.SessionID = id.String()
	}

	return status
}

// Shutdown stops everything in reverse start order.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down")
		lm.setState(StateStopping)

		if err := lm.restServer.Shutdown(ctx); err != nil {
			lm.logger.Error("REST shutdown failed", zap.Error(err))
			shutdownErr = err
		}

		if err := lm.StopMonitoring(ctx); err != nil {
			lm.logger.Error("Monitor shutdown failed", zap.Error(err))
		}

		// Closes the event channel and ends the pump.
		lm.monitor.Unsubscribe(lm.events)
		lm.pumpWg.Wait()

		lm.client.Disconnect()

		lm.setState(StateStopped)
		lm.logger.Info("Shutdown complete")
	})

	return shutdownErr
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	lm.currentState = state
	lm.stateMu.Unlock()
}

func (lm *LifecycleManager) getState() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}
