// ABOUTME: Conversion between registry configs and wire configs
// ABOUTME: The persistent flag never crosses the wire
package resonate

import (
	"maps"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
)

func toWire(cfg session.Config) protocol.SessionConfig {
	return protocol.SessionConfig{
		Resource:       cfg.Resource,
		DestroyOnEnded: cfg.DestroyOnEnded,
		Volume:         cfg.Volume,
		Parent:         cfg.Parent,
		Name:           cfg.Name,
		Looped:         cfg.Looped,
		TimePosition:   cfg.TimePosition,
		Properties:     maps.Clone(cfg.Properties),
	}
}

func fromWire(sc protocol.SessionConfig) session.Config {
	return session.Config{
		Resource:       sc.Resource,
		DestroyOnEnded: sc.DestroyOnEnded,
		Volume:         sc.Volume,
		Parent:         sc.Parent,
		Name:           sc.Name,
		Looped:         sc.Looped,
		TimePosition:   sc.TimePosition,
		Properties:     sc.Properties,
	}
}

func startMessage(cfg session.Config, id, group string) protocol.Message {
	return protocol.Message{
		Type: protocol.TypeSessionStart,
		Payload: protocol.SessionStart{
			ID:     id,
			Group:  group,
			Config: toWire(cfg),
		},
	}
}

func stopMessage(id string) protocol.Message {
	return protocol.Message{
		Type:    protocol.TypeSessionStop,
		Payload: protocol.SessionStop{ID: id},
	}
}
