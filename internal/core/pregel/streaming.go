package pregel

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// EventType names an execution event.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunEnd         EventType = "run_end"
	EventSuperstepStart EventType = "superstep_start"
	EventSuperstepEnd   EventType = "superstep_end"
	EventNodeStart      EventType = "node_start"
	EventNodeEnd        EventType = "node_end"
	EventNodeRetry      EventType = "node_retry"
	EventCacheHit       EventType = "cache_hit"
	EventBranchDecision EventType = "branch_decision"
	EventBoundExceeded  EventType = "bound_exceeded"
)

// StreamEvent represents events during graph execution
type StreamEvent struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Node      string                 `json:"node,omitempty"`
	Step      int                    `json:"step"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// StreamHandler processes streaming events
type StreamHandler interface {
	HandleEvent(event StreamEvent) error
}

// Streamer fans events out to handlers on a background goroutine.
// Events emitted while the buffer is full are dropped.
type Streamer struct {
	handlers []StreamHandler
	events   chan StreamEvent
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

func NewStreamer(handlers ...StreamHandler) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		handlers: handlers,
		events:   make(chan StreamEvent, 1000),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (s *Streamer) AddHandler(handler StreamHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *Streamer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	go func() {
		defer close(s.done)
		for {
			select {
			case event := <-s.events:
				s.dispatch(event)
			case <-s.ctx.Done():
				s.drain()
				return
			}
		}
	}()
}

func (s *Streamer) dispatch(event StreamEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handler := range s.handlers {
		_ = handler.HandleEvent(event)
	}
}

func (s *Streamer) drain() {
	for {
		select {
		case event := <-s.events:
			s.dispatch(event)
		default:
			return
		}
	}
}

func (s *Streamer) EmitEvent(event StreamEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixNano()
	}
	select {
	case s.events <- event:
	default:
	}
}

// Stop delivers buffered events and waits for the dispatch goroutine to exit.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

// Built-in stream handlers

// LogStreamHandler writes events to a structured logger at Debug level.
type LogStreamHandler struct {
	Logger *slog.Logger
}

func (lsh *LogStreamHandler) HandleEvent(event StreamEvent) error {
	lsh.Logger.Debug("workflow event",
		"type", event.Type, "run_id", event.RunID, "node", event.Node, "step", event.Step, "data", event.Data)
	return nil
}

// MetricsStreamHandler collects per-run execution metrics.
type MetricsStreamHandler struct {
	mu             sync.RWMutex
	NodeCounts     map[string]int        // node -> execution count
	SuperstepTimes map[int]time.Duration // superstep -> duration
	EventCounts    map[EventType]int     // event type -> count
	Retries        map[string]int        // node -> retried attempts
	CacheHits      map[string]int        // node -> cache hits
	startTimes     map[int]time.Time
}

func NewMetricsStreamHandler() *MetricsStreamHandler {
	return &MetricsStreamHandler{
		NodeCounts:     make(map[string]int),
		SuperstepTimes: make(map[int]time.Duration),
		EventCounts:    make(map[EventType]int),
		Retries:        make(map[string]int),
		CacheHits:      make(map[string]int),
		startTimes:     make(map[int]time.Time),
	}
}

func (msh *MetricsStreamHandler) HandleEvent(event StreamEvent) error {
	msh.mu.Lock()
	defer msh.mu.Unlock()

	msh.EventCounts[event.Type]++

	switch event.Type {
	case EventNodeStart:
		msh.NodeCounts[event.Node]++
	case EventNodeRetry:
		msh.Retries[event.Node]++
	case EventCacheHit:
		msh.CacheHits[event.Node]++
	case EventSuperstepStart:
		msh.startTimes[event.Step] = time.Unix(0, event.Timestamp)
	case EventSuperstepEnd:
		if startTime, exists := msh.startTimes[event.Step]; exists {
			msh.SuperstepTimes[event.Step] = time.Unix(0, event.Timestamp).Sub(startTime)
		}
	}
	return nil
}

func (msh *MetricsStreamHandler) GetMetrics() map[string]interface{} {
	msh.mu.RLock()
	defer msh.mu.RUnlock()

	totalDuration := time.Duration(0)
	for _, duration := range msh.SuperstepTimes {
		totalDuration += duration
	}

	return map[string]interface{}{
		"node_executions": maps.Clone(msh.NodeCounts),
		"node_retries":    maps.Clone(msh.Retries),
		"cache_hits":      maps.Clone(msh.CacheHits),
		"event_counts":    maps.Clone(msh.EventCounts),
		"total_duration":  totalDuration,
		"superstep_count": len(msh.SuperstepTimes),
	}
}

// CallbackStreamHandler executes custom callbacks for specific events
type CallbackStreamHandler struct {
	callbacks map[EventType]func(StreamEvent) error
	mu        sync.RWMutex
}

func NewCallbackStreamHandler() *CallbackStreamHandler {
	return &CallbackStreamHandler{
		callbacks: make(map[EventType]func(StreamEvent) error),
	}
}

func (csh *CallbackStreamHandler) AddCallback(eventType EventType, callback func(StreamEvent) error) {
	csh.mu.Lock()
	defer csh.mu.Unlock()
	csh.callbacks[eventType] = callback
}

func (csh *CallbackStreamHandler) HandleEvent(event StreamEvent) error {
	csh.mu.RLock()
	callback, exists := csh.callbacks[event.Type]
	csh.mu.RUnlock()

	if exists {
		return callback(event)
	}
	return nil
}
