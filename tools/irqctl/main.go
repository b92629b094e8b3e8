// Command irqctl drives a running irqsim instance.
//
//	irqctl [-addr URL] raise LINE
//	irqctl [-addr URL] status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"clint/sim/api"
	"clint/sim/client"
)

var (
	addr    = flag.String("addr", "http://127.0.0.1:4000", "base URL of the simulator")
	timeout = flag.Duration("timeout", 5*time.Second, "request timeout")
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[irqctl] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	flag.Parse()
	if len(flag.Args()) == 0 {
		exit(errors.New("missing command"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*addr, nil)

	switch cmd := flag.Arg(0); cmd {
	case "raise":
		if len(flag.Args()) != 2 {
			exit(errors.New("raise requires the interrupt line as an argument"))
		}
		line, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			exit(fmt.Errorf("invalid line %q", flag.Arg(1)))
		}

		res, err := c.Raise(ctx, line)
		if err != nil {
			exit(err)
		}
		fmt.Printf("line %d: %s\n", res.Line, res.Status)
	case "status":
		st, err := c.Handlers(ctx)
		if err != nil {
			exit(err)
		}
		if err := printStatus(os.Stdout, st); err != nil {
			exit(err)
		}
	default:
		exit(fmt.Errorf("unknown command %q", cmd))
	}
}

func printStatus(w io.Writer, st []api.LineStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tSOURCE\tHANDLER\tTICKS\tMASKED")
	for _, s := range st {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\n", s.Line, s.Source, s.Handler, s.Ticks, s.Masked)
	}

	return tw.Flush()
}
