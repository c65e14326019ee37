// Command multiview runs the MultiView IPTV layout compositor service.
package main

import (
	"fmt"
	"os"

	"github.com/kikootwo/multiview/cmd/multiview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
