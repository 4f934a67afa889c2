package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence during a pipeline execution.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// OperationID is the operation being executed.
	OperationID string `json:"operation_id,omitempty"`

	// CorrelationID identifies the execution.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]any `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeExecutionStarted   = "execution.started"
	EventTypeExecutionCompleted = "execution.completed"
	EventTypeExecutionFailed    = "execution.failed"
	EventTypeStageFailed        = "stage.failed"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans execution events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	// mu protects subscribers and filters.
	mu sync.RWMutex
	// sendMu orders enqueues before Shutdown's cancel so the final drain
	// sees every accepted event.
	sendMu sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Enabled reports whether published events reach subscribers.
func (ep *EventPublisher) Enabled() bool {
	return ep != nil && ep.config.Enabled
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.Enabled() {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		if ep.ctx.Err() != nil {
			return fmt.Errorf("event publisher stopped")
		}
		ep.deliverEvent(event)
		return nil
	}

	ep.sendMu.RLock()
	defer ep.sendMu.RUnlock()

	if ep.ctx.Err() != nil {
		return fmt.Errorf("event publisher stopped")
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, event %s dropped", event.Type)
	}
}

// PublishExecutionStarted publishes an execution started event.
func (ep *EventPublisher) PublishExecutionStarted(operationID, correlationID string) error {
	return ep.Publish(Event{
		Type:          EventTypeExecutionStarted,
		Source:        "engine",
		OperationID:   operationID,
		CorrelationID: correlationID,
		Message:       fmt.Sprintf("Execution of %s started", operationID),
		Level:         EventLevelInfo,
	})
}

// PublishExecutionCompleted publishes an execution completed event.
func (ep *EventPublisher) PublishExecutionCompleted(operationID, correlationID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:          EventTypeExecutionCompleted,
		Source:        "engine",
		OperationID:   operationID,
		CorrelationID: correlationID,
		Message:       fmt.Sprintf("Execution of %s completed", operationID),
		Level:         EventLevelInfo,
		Data: map[string]any{
			"duration": duration.Seconds(),
		},
	})
}

// PublishExecutionFailed publishes an execution failed event.
func (ep *EventPublisher) PublishExecutionFailed(operationID, correlationID, kind, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeExecutionFailed,
		Source:        "engine",
		OperationID:   operationID,
		CorrelationID: correlationID,
		Message:       fmt.Sprintf("Execution of %s failed: %s", operationID, reason),
		Level:         EventLevelError,
		Data: map[string]any{
			"kind":   kind,
			"reason": reason,
		},
	})
}

// PublishStageFailed publishes an event for a stage that ended an execution.
func (ep *EventPublisher) PublishStageFailed(operationID, correlationID, stage, kind, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeStageFailed,
		Source:        "engine",
		OperationID:   operationID,
		CorrelationID: correlationID,
		Message:       fmt.Sprintf("Stage %s of %s failed: %s", stage, operationID, reason),
		Level:         EventLevelWarning,
		Data: map[string]any{
			"stage":  stage,
			"kind":   kind,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents delivers buffered events in batches until shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			batch = ep.fill(batch)
			ep.flushBatch(batch)
			batch = batch[:0]

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// fill appends already buffered events to batch without blocking.
func (ep *EventPublisher) fill(batch []Event) []Event {
	for len(batch) < ep.config.MaxBatchSize {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent hands an event to every matching subscriber in order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.Enabled() {
		return nil
	}

	ep.sendMu.Lock()
	ep.cancel()
	ep.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByOperation creates a filter that only allows events for one operation.
func FilterByOperation(operationID string) EventFilter {
	return func(event Event) bool {
		return event.OperationID == operationID
	}
}
