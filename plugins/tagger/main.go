// Command tagger is the example plugin. Build it next to its manifest:
//
//	go build -o plugins/tagger/tagger ./plugins/tagger
package main

import (
	"github.com/mattjoyce/plugkit/internal/pluginio"
	"github.com/mattjoyce/plugkit/internal/stashapi"
	"github.com/mattjoyce/plugkit/internal/tagger"
)

func main() {
	pluginio.Main(tagger.New(stashapi.HTTPFactory).Registry())
}
