package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/jonesdeveloperchung-pixel/JadeScribe"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(jadescribe.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
