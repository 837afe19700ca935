package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events that do not name a channel.
const DefaultChannel = "settings"

// Config switches emission on and picks the channel.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter sends events to hooks when enabled.
type Emitter struct {
	hooks   Hooks
	channel string
}

// NewEmitter returns an emitter that stays silent unless cfg.Enabled is set
// and at least one hook is present.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{channel: strings.TrimSpace(cfg.Channel)}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if cfg.Enabled {
		e.hooks = hooks.Compact()
	}
	return e
}

func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit forwards event, filling in the channel when it is empty.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
