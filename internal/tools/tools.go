// Package tools interprets remote function invocations and applies their
// effects locally. The gateway treats every result as a completion
// acknowledgement, never a value to branch on.
package tools

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/pkg/voicelink"
)

// FunctionAmbience is the one function declared to the gateway.
const FunctionAmbience = "controlAmbientSound"

const defaultVolume = 50

// Mixer is the soundscape surface a remote invocation may drive.
type Mixer interface {
	Play(key string, volume int)
	AdjustVolume(volume int)
	Stop()
}

// Result acknowledges one completed invocation.
type Result struct {
	ID     string
	Name   string
	Output string
}

// Dispatcher validates remote invocations and applies them to the mixer.
type Dispatcher struct {
	mixer  Mixer
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher over the given mixer.
func NewDispatcher(mixer Mixer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{mixer: mixer, logger: logger}
}

// Declarations returns the function set announced at session start. Known
// sound keys are embedded in the parameter schema so the model picks from
// real tracks.
func Declarations(sounds []string) []voicelink.ToolDecl {
	soundSchema := map[string]any{
		"type":        "string",
		"description": "key of the ambient sound to play",
	}
	if len(sounds) > 0 {
		soundSchema["enum"] = sounds
	}
	return []voicelink.ToolDecl{
		{
			Name: FunctionAmbience,
			Description: "Control the looping background soundscape: start or " +
				"switch a sound with action=play, change loudness with " +
				"action=volume, fade out with action=stop.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{"play", "volume", "stop"},
					},
					"sound": soundSchema,
					"volume": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"maximum":     100,
						"description": "target volume percentage",
					},
				},
				"required": []string{"action"},
			},
		},
	}
}

type ambienceArgs struct {
	Action string `json:"action"`
	Sound  string `json:"sound"`
	Volume *int   `json:"volume"`
}

// Dispatch applies one invocation synchronously and returns its
// acknowledgement. Unrecognized function names are ignored with a warning and
// produce no result.
func (d *Dispatcher) Dispatch(call voicelink.ToolCall) (Result, bool) {
	if call.Name != FunctionAmbience {
		d.logger.Warn("unknown tool invocation",
			zap.String("name", call.Name),
			zap.String("id", call.ID),
		)
		return Result{}, false
	}

	res := Result{ID: call.ID, Name: call.Name, Output: d.applyAmbience(call.Arguments)}
	d.logger.Info("tool invocation handled",
		zap.String("id", call.ID),
		zap.String("output", res.Output),
	)
	return res, true
}

func (d *Dispatcher) applyAmbience(raw json.RawMessage) string {
	var args ambienceArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			d.logger.Warn("bad ambience arguments", zap.Error(err))
			return "ambience unchanged"
		}
	}

	switch args.Action {
	case "play":
		if args.Sound == "" {
			d.logger.Warn("ambience play without sound key")
			return "ambience unchanged"
		}
		volume := defaultVolume
		if args.Volume != nil {
			volume = *args.Volume
		}
		d.mixer.Play(args.Sound, volume)
		return fmt.Sprintf("ambience set to %s at volume %d", args.Sound, volume)
	case "volume":
		if args.Volume == nil {
			d.logger.Warn("ambience volume without value")
			return "ambience unchanged"
		}
		d.mixer.AdjustVolume(*args.Volume)
		return fmt.Sprintf("ambience volume set to %d", *args.Volume)
	case "stop":
		d.mixer.Stop()
		return "ambience stopped"
	default:
		d.logger.Warn("unsupported ambience action", zap.String("action", args.Action))
		return "ambience unchanged"
	}
}
