// Command cryocooler runs the cryocooler cooldown controller.
package main

import (
	"fmt"
	"os"

	"github.com/jhyland87/Cryocooler-Controller/internal/cli"
	"github.com/jhyland87/Cryocooler-Controller/pkg/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger.Log != nil {
				logger.Log.Error("panic recovered", "panic", r)
			} else {
				fmt.Fprintf(os.Stderr, "panic recovered: %v\n", r)
			}
			os.Exit(1)
		}
	}()

	cli.Execute()
}
