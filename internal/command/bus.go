// internal/command/bus.go
package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrNoHandler is returned for commands without a registered handler.
var ErrNoHandler = errors.New("no handler registered")

// Handler executes one command type and returns its result.
type Handler interface {
	Handle(ctx context.Context, cmd Command) (any, error)
}

// HandlerFunc adapts a typed function into a Handler.
type HandlerFunc[C Command] func(ctx context.Context, cmd C) (any, error)

// Handle implements Handler.
func (f HandlerFunc[C]) Handle(ctx context.Context, cmd Command) (any, error) {
	typed, ok := cmd.(C)
	if !ok {
		return nil, fmt.Errorf("unexpected command %T", cmd)
	}
	return f(ctx, typed)
}

// Bus dispatches commands to handlers by concrete type.
type Bus struct {
	handlers map[reflect.Type]Handler
	names    map[reflect.Type]string
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewBus creates an empty command bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[reflect.Type]Handler),
		names:    make(map[reflect.Type]string),
		logger:   logger.Named("command_bus"),
	}
}

// Register binds handler to the type of cmd.
func (bus *Bus) Register(cmd Command, handler Handler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	t := reflect.TypeOf(cmd)
	bus.handlers[t] = handler
	bus.names[t] = cmd.GetType()

	bus.logger.Debug("Command handler registered",
		zap.String("command_type", cmd.GetType()),
		zap.String("handler", reflect.TypeOf(handler).String()))
}

// Register binds a typed function to commands of type C.
func Register[C Command](bus *Bus, fn func(ctx context.Context, cmd C) (any, error)) {
	var zero C
	bus.Register(zero, HandlerFunc[C](fn))
}

// Send validates cmd and runs its handler.
func (bus *Bus) Send(ctx context.Context, cmd Command) (any, error) {
	if err := cmd.Validate(); err != nil {
		bus.logger.Warn("Command validation failed",
			zap.String("command_type", cmd.GetType()),
			zap.String("actor", cmd.GetActor()),
			zap.Error(err))
		return nil, fmt.Errorf("invalid %s command: %w", cmd.GetType(), err)
	}

	bus.mu.RLock()
	handler, exists := bus.handlers[reflect.TypeOf(cmd)]
	bus.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w for %s", ErrNoHandler, cmd.GetType())
	}

	bus.logger.Debug("Executing command",
		zap.String("command_type", cmd.GetType()),
		zap.String("actor", cmd.GetActor()))

	result, err := handler.Handle(ctx, cmd)
	if err != nil {
		bus.logger.Debug("Command rejected",
			zap.String("command_type", cmd.GetType()),
			zap.String("actor", cmd.GetActor()),
			zap.Error(err))
		return nil, fmt.Errorf("%s failed: %w", cmd.GetType(), err)
	}
	return result, nil
}

// Registered returns the command types with handlers, sorted.
func (bus *Bus) Registered() []string {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	names := make([]string, 0, len(bus.names))
	for _, n := range bus.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
