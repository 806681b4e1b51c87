// Command lgv derives a version string from the enclosing git repository.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/launchbynttdata/launch-git-versioner/internal/cli"
)

func main() {
	os.Exit(run(context.Background(), os.Stderr))
}

func run(ctx context.Context, stderr io.Writer) int {
	if err := cli.Execute(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "lgv: %v\n", err)
		return 1
	}
	return 0
}
