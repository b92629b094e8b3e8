// Command irqsim runs the interrupt handler table on an emulated single-core
// board and exposes it over HTTP.
package main

import (
	"flag"
	"fmt"
	"os"

	"clint/sim/app"
	"clint/sim/config"

	"go.uber.org/fx"
)

var (
	configFile = flag.String("config", "irqsim.toml", "path to the configuration file")
	schema     = flag.Bool("schema", false, "print the JSON schema of the configuration file and exit")
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[irqsim] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	flag.Parse()

	if *schema {
		b, err := config.Schema()
		if err != nil {
			exit(err)
		}
		fmt.Printf("%s\n", b)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		exit(err)
	}

	fx.New(app.Module(cfg, os.Stdout)).Run()
}
