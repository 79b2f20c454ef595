package main

import (
	"fmt"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"

	"github.com/deepnoodle-ai/effectvm/engine"
)

// keypressObserver advances one step-machine transition per keypress,
// printing each TransitionEvent/DispatchEvent/HostCallEvent as it fires.
// This is the interactive analogue of the teacher's -breakpoints flag.
type keypressObserver struct {
	cfg engine.ObserverConfig
}

func newKeypressObserver() *keypressObserver {
	return &keypressObserver{cfg: engine.NewObserverConfig(engine.StepAll)}
}

func (k *keypressObserver) Config() engine.ObserverConfig { return k.cfg }

func (k *keypressObserver) OnStep(ev engine.TransitionEvent) bool {
	fmt.Printf("step: %s segment=%d\n", ev.Mode, ev.SegmentID)
	return k.waitForKey()
}

func (k *keypressObserver) OnDispatch(ev engine.DispatchEvent) bool {
	fmt.Printf("  dispatch: id=%d marker=%d\n", ev.DispatchID, ev.Marker)
	return true
}

func (k *keypressObserver) OnHostCall(ev engine.HostCallEvent) bool {
	fmt.Printf("  host call: kind=%d\n", ev.Kind)
	return true
}

// waitForKey blocks for a single keypress: any key continues, Ctrl+C
// or 'q' aborts execution.
func (k *keypressObserver) waitForKey() bool {
	fmt.Print("  press any key to continue (q to quit)... ")
	key, err := keyboard.GetSingleKey()
	fmt.Println()
	if err != nil {
		return false
	}
	if key.Code == keys.CtrlC || key.String() == "q" {
		return false
	}
	return true
}

var _ engine.Observer = (*keypressObserver)(nil)
