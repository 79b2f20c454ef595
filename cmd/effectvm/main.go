package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/effectvm"
	"github.com/deepnoodle-ai/effectvm/coroutine"
	"github.com/deepnoodle-ai/effectvm/engine"
	"github.com/deepnoodle-ai/effectvm/value"
)

func main() {
	var noColor, step bool
	var stepLimit int
	flag.BoolVar(&noColor, "no-color", false, "Disable color output")
	flag.BoolVar(&step, "step", false, "Advance one transition per keypress")
	flag.IntVar(&stepLimit, "step-limit", 0, "Abort after this many step-machine transitions (0 = unlimited)")
	flag.Parse()

	if noColor {
		color.NoColor = true
	}
	green := color.New(color.FgGreen).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()

	program := demoProgram()

	var observer engine.Observer
	if step {
		observer = newKeypressObserver()
	}

	ctx := context.Background()
	result := effectvm.Run(ctx, program, effectvm.WithObserver(observer), effectvm.WithStepLimit(stepLimit))
	if result.IsErr() {
		fmt.Fprintf(os.Stderr, "%s\n", red(result.Err.Error()))
		os.Exit(1)
	}
	fmt.Println(green(result.Value.Inspect()))
}

// demoProgram is a small built-in example: Put a counter, Get it back,
// Tell a log line, return the final value. Real embedders supply their
// own value.Program via the library API instead of this CLI.
func demoProgram() value.Program {
	return coroutine.NewProgram(func(ctx context.Context, yield func(value.Value) value.Value) value.Value {
		yield(value.AsEffect(value.Put{Key: "counter", Value: value.NewInt(1)}))
		current := yield(value.AsEffect(value.Get{Key: "counter"}))
		yield(value.AsEffect(value.Tell{Message: value.NewString("counter read back")}))
		return current
	})
}
