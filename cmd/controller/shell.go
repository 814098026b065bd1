package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/erkko68/xarxes/internal/dataplane"
	"github.com/erkko68/xarxes/internal/session"
)

// runShell reads line-buffered commands from stdin for the controller's
// entire lifetime, spanning any number of subscribe/disconnect cycles.
// getDisc fetches whichever DisconnectSignal is live for the current
// subscription attempt. Commands other than quit are only honoured while
// the controller is in SEND_HELLO.
func runShell(ctx context.Context, ctrl *session.Controller, getDisc func() *session.DisconnectSignal, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]

		if cmd == "quit" {
			if d := getDisc(); d != nil {
				d.Raise()
			}
			cancel()
			return
		}

		if ctrl.Status() != session.SendHello {
			fmt.Println("not subscribed yet")
			continue
		}

		switch cmd {
		case "stat":
			fmt.Printf("name=%s situation=%s mac=%s status=%s\n",
				ctrl.Identity.Name, ctrl.Identity.Situation, ctrl.Identity.MAC, ctrl.Status())
			fmt.Print(ctrl.Elements.String())
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set <device> <value>")
				continue
			}
			if !ctrl.Elements.Has(fields[1]) {
				fmt.Println("unowned device")
				continue
			}
			ctrl.Elements.Set(fields[1], fields[2])
		case "send":
			if len(fields) != 2 {
				fmt.Println("usage: send <device>")
				continue
			}
			device := fields[1]
			if d := getDisc(); d != nil {
				go dataplane.SendDevice(ctrl, d, device)
			}
		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}
