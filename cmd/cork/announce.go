package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/ui"
)

// cliSession is the origin of the events this invocation announces.
var cliSession = idgen.Session()

// announce tells the live sessions about a change already committed to the
// store. The change stands either way, so a failed broadcast only warns.
func announce(ctx context.Context, p model.Payload) {
	ev := model.NewEvent(cliSession, p)
	if _, err := boardClient.Submit(ctx, ev); err != nil {
		fmt.Fprintf(os.Stderr, "%s broadcasting %s: %v\n", ui.RenderStatus("warning"), ev.Type(), err)
	}
}
