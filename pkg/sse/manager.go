// Package sse fans server events out to connected browsers.
package sse

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const clientBuffer = 32

// Event is one named server-sent event. Data is encoded as JSON.
type Event struct {
	Name string
	Data interface{}
}

type client struct {
	id     string
	events chan Event
}

// Manager is a hub: Run owns the client set, everything else talks to it
// over channels.
type Manager struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	stopChan   chan struct{}
	stopOnce   sync.Once

	clients map[string]*client
	count   atomic.Int32
}

func NewManager() *Manager {
	return &Manager{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, clientBuffer),
		stopChan:   make(chan struct{}),
		clients:    map[string]*client{},
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.clients[c.id] = c
			m.count.Store(int32(len(m.clients)))
			log.Printf("[SSE] Client %s connected (%d total)", c.id, len(m.clients))
		case c := <-m.unregister:
			if _, ok := m.clients[c.id]; ok {
				delete(m.clients, c.id)
				m.count.Store(int32(len(m.clients)))
				log.Printf("[SSE] Client %s disconnected (%d total)", c.id, len(m.clients))
			}
		case ev := <-m.broadcast:
			for _, c := range m.clients {
				select {
				case c.events <- ev:
				default:
					log.Printf("[SSE] Client %s is too slow, dropping %s event", c.id, ev.Name)
				}
			}
		case <-m.stopChan:
			for id, c := range m.clients {
				close(c.events)
				delete(m.clients, id)
			}
			m.count.Store(0)
			return
		}
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Broadcast queues an event for every connected client.
func (m *Manager) Broadcast(name string, data interface{}) {
	select {
	case m.broadcast <- Event{Name: name, Data: data}:
	case <-m.stopChan:
	}
}

// ClientCount is the number of connected clients.
func (m *Manager) ClientCount() int {
	return int(m.count.Load())
}

// ServeHTTP streams events to the caller until it disconnects.
func (m *Manager) ServeHTTP(c *gin.Context) {
	cl := &client{id: uuid.New().String(), events: make(chan Event, clientBuffer)}

	select {
	case m.register <- cl:
	case <-m.stopChan:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is shutting down"})
		return
	}
	defer func() {
		select {
		case m.unregister <- cl:
		case <-m.stopChan:
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("connected", gin.H{"clientId": cl.id})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cl.events:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, ev.Data)
			c.Writer.Flush()
		}
	}
}
