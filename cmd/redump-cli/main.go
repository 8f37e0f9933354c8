package main

import (
	"context"

	"redumparchive/cmd/redump-cli/commands"
	"redumparchive/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext(context.Background()))
}
