package www

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/antomihe/SustainableCity/engine"
	"github.com/antomihe/SustainableCity/metrics"
	"github.com/antomihe/SustainableCity/store"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopOnce  sync.Once
	stopChan  chan struct{}
	snapshot  func() ([]*store.Container, error)
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

// fanOut drops the event for clients whose buffer is full.
func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
		log.Warnf("sse: broadcast buffer full, dropping %s", event)
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	metrics.SSEClients.Inc()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
	metrics.SSEClients.Dec()
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts and uses the
// live state as the on-connect snapshot.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	h.snapshot = eng.LiveState().All

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("containerUpdated", ssePayload(evt.Payload.(engine.ContainerUpdatedEvent).Container))
	}, engine.EventContainerUpdated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ContainerDeletedEvent)
		h.Broadcast("containerDeleted", ssePayload(map[string]string{"id": ev.ContainerID}))
	}, engine.EventContainerDeleted)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("criticalContainerAlert", ssePayload(evt.Payload.(engine.CriticalFillEvent).Container))
	}, engine.EventCriticalFill)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.AssignmentsChangedEvent)
		h.Broadcast("assignmentsUpdated", ssePayload(map[string]any{
			"scope":    ev.Scope,
			"id":       ev.ID,
			"assigned": ev.Assigned,
		}))
	}, engine.EventAssignmentsChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)
}

// SSEHandler serves the SSE endpoint. Each client first receives the full
// container list as containersUpdate.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	if h.snapshot != nil {
		containers, err := h.snapshot()
		if err != nil {
			log.Errorf("sse: snapshot: %v", err)
		} else if _, err := fmt.Fprintf(w, "event: containersUpdate\ndata: %s\n\n", ssePayload(containers)); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Debugf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
