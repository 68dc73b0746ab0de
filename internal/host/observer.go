package host

import "github.com/mattjoyce/plugkit/internal/protocol"

// Observer receives a run's records live, in the order the plugin wrote
// them. Calls come from a single goroutine.
type Observer interface {
	OnLog(level protocol.Level, msg string)
	OnProgress(fraction float64)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Log      func(level protocol.Level, msg string)
	Progress func(fraction float64)
}

func (o ObserverFuncs) OnLog(level protocol.Level, msg string) {
	if o.Log != nil {
		o.Log(level, msg)
	}
}

func (o ObserverFuncs) OnProgress(fraction float64) {
	if o.Progress != nil {
		o.Progress(fraction)
	}
}

type nopObserver struct{}

func (nopObserver) OnLog(protocol.Level, string) {}
func (nopObserver) OnProgress(float64)           {}
