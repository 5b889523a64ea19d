package engine

import (
	"log"
	"time"

	"washfleet/config"
	"washfleet/dispatch"
	"washfleet/fleet"
	"washfleet/messaging"
	"washfleet/monitor"
	"washfleet/nav"
	"washfleet/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Robots     *fleet.Registry
	Nav        *nav.Registry
	Mirror     *fleet.Mirror
	MsgClient  *messaging.Client
	LogFunc    LogFunc
}

// Engine ties the pieces together: it owns the dispatcher and monitors,
// routes robot exchanges through the navigation resolver and arrival
// trackers, and fans lifecycle events out on the bus.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	robots     *fleet.Registry
	nav        *nav.Registry
	mirror     *fleet.Mirror
	msgClient  *messaging.Client
	dispatcher *dispatch.Dispatcher
	timeouts   *monitor.TimeoutMonitor
	offline    *monitor.OfflineMonitor
	Events     *EventBus

	logFn        LogFunc
	stopChan     chan struct{}
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		robots:     c.Robots,
		nav:        c.Nav,
		mirror:     c.Mirror,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}
}

func (e *Engine) Start() error {
	if err := e.nav.Reload(); err != nil {
		return err
	}

	e.dispatcher = dispatch.NewDispatcher(
		e.db,
		e.robots,
		e.nav,
		&busEmitter{bus: e.Events},
		e.cfg.Dispatch.AutoAccept,
		e.cfg.Dispatch.AutoStartDelivery,
	)

	e.wireEventHandlers()
	e.restoreFleetState()

	e.timeouts = monitor.NewTimeoutMonitor(e.db, e.dispatcher, e.cfg.Dispatch)
	e.offline = monitor.NewOfflineMonitor(e.db, e.dispatcher, e.robots, e.cfg.Dispatch.OfflineInterval)
	e.timeouts.Start()
	e.offline.Start()

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started")
	return nil
}

func (e *Engine) Stop() {
	select {
	case e.stopChan <- struct{}{}:
	default:
	}
	e.timeouts.Stop()
	e.offline.Stop()
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                    { return e.db }
func (e *Engine) AppConfig() *config.Config        { return e.cfg }
func (e *Engine) ConfigPath() string               { return e.configPath }
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }
func (e *Engine) Robots() *fleet.Registry          { return e.robots }
func (e *Engine) Nav() *nav.Registry               { return e.nav }
func (e *Engine) MsgClient() *messaging.Client     { return e.msgClient }

// restoreFleetState rebuilds in-memory robot occupancy from persisted
// requests after a restart. Robots re-register and regain their navigation
// targets on their next exchange; what must not be lost is which robots are
// mid-request, or the queue would double-book them.
func (e *Engine) restoreFleetState() {
	reqs, err := e.db.ListActiveRequests()
	if err != nil {
		e.logFn("engine: restore fleet state: %v", err)
		return
	}
	restored := 0
	for _, req := range reqs {
		if req.Robot == "" || !dispatch.RobotEngaged(req.Status) {
			continue
		}
		robot := e.robots.GetOrRegister(req.Robot)
		assignedAt := time.Now()
		if req.AcceptedAt != nil {
			assignedAt = *req.AcceptedAt
		}
		robot.Assign(assignedAt)
		restored++
	}
	if restored > 0 {
		e.logFn("engine: restored %d in-flight assignment(s)", restored)
	}
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}
