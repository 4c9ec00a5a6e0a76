// Package engine assembles the container services around one event bus and
// wires the side effects of container events: audit, live state, outbox and
// alert notifications.
package engine

import (
	"sync"
	"time"

	"github.com/antomihe/SustainableCity/assignments"
	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/incidents"
	"github.com/antomihe/SustainableCity/lifecycle"
	"github.com/antomihe/SustainableCity/livestate"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/messaging"
	"github.com/antomihe/SustainableCity/notify"
	"github.com/antomihe/SustainableCity/search"
	"github.com/antomihe/SustainableCity/store"
)

var log = logging.For("engine")

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	LiveState  *livestate.Manager
	MsgClient  *messaging.Client
	Notifier   notify.Notifier
}

type Engine struct {
	cfg         *config.Config
	configPath  string
	db          *store.DB
	liveState   *livestate.Manager
	msgClient   *messaging.Client
	notifier    notify.Notifier
	lifecycle   *lifecycle.Engine
	incidents   *incidents.Validator
	assignments *assignments.Manager
	search      *search.Engine
	Events      *EventBus

	stopChan     chan struct{}
	stopOnce     sync.Once
	pending      sync.WaitGroup
	msgConnected bool
}

func New(c Config) *Engine {
	if c.LiveState == nil {
		c.LiveState = livestate.NewManager(c.DB, nil)
	}
	if c.Notifier == nil {
		c.Notifier = notify.LogNotifier{}
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		liveState:  c.LiveState,
		msgClient:  c.MsgClient,
		notifier:   c.Notifier,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}
	e.lifecycle = lifecycle.New(c.DB, &lifecycleEmitter{bus: e.Events}, c.AppConfig.Alerts.CriticalFillLevel)
	e.incidents = incidents.NewValidator(c.DB, e.lifecycle)
	e.assignments = assignments.NewManager(c.DB, &assignmentEmitter{bus: e.Events})
	e.search = search.NewEngine(c.DB)
	return e
}

func (e *Engine) Start() {
	e.wireEventHandlers()

	if e.msgClient.Enabled() {
		e.checkConnectionStatus()
		go e.connectionHealthLoop()
	}

	log.Infof("started (critical fill level %d%%)", e.lifecycle.Threshold())
}

// Stop ends background loops and waits for in-flight notifications.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.pending.Wait()
	log.Info("stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                      { return e.db }
func (e *Engine) AppConfig() *config.Config          { return e.cfg }
func (e *Engine) ConfigPath() string                 { return e.configPath }
func (e *Engine) LiveState() *livestate.Manager      { return e.liveState }
func (e *Engine) MsgClient() *messaging.Client       { return e.msgClient }
func (e *Engine) Lifecycle() *lifecycle.Engine       { return e.lifecycle }
func (e *Engine) Incidents() *incidents.Validator    { return e.incidents }
func (e *Engine) Assignments() *assignments.Manager  { return e.assignments }
func (e *Engine) Search() *search.Engine             { return e.search }

// MessagingConnected reports the last observed broker state.
func (e *Engine) MessagingConnected() bool { return e.msgClient.IsConnected() }

func (e *Engine) checkConnectionStatus() {
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
	if !e.msgClient.Enabled() {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		log.Errorf("messaging reconfigure error: %v", err)
	} else {
		log.Info("messaging reconfigured")
	}
	e.checkConnectionStatus()
}
