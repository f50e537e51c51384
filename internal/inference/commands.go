package inference

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/digitcmp/internal/canvas"
)

// Command is a user input event translated into an operation on the session.
type Command interface {
	isCommand()
}

type StrokeStart struct{ At canvas.Point }

type StrokeMove struct{ At canvas.Point }

// StrokeEnd closes the path and triggers one inference pass.
type StrokeEnd struct{}

// Clear wipes the canvas and both prediction vectors.
type Clear struct{}

func (StrokeStart) isCommand() {}
func (StrokeMove) isCommand()  {}
func (StrokeEnd) isCommand()   {}
func (Clear) isCommand()       {}

// Dispatch applies cmd and returns the prediction vectors afterwards.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Snapshot, error) {
	switch c := cmd.(type) {
	case StrokeStart:
		s.surface.StrokeStart(c.At)
	case StrokeMove:
		s.surface.StrokeMove(c.At)
	case StrokeEnd:
		s.surface.StrokeEnd()
		return s.Run(ctx), nil
	case Clear:
		s.Clear()
	default:
		return Snapshot{}, fmt.Errorf("unknown command %T", cmd)
	}
	return s.Snapshot(), nil
}
