// Package netcli provides the core of a screen-scraping CLI automation
// client for network devices: the engine that opens an interactive SSH or
// Telnet session, authenticates across whatever in-band prompts the device
// presents, tracks the device's privilege mode, reliably sends inputs and
// recognizes when a reply is complete, and reports structured outcomes.
//
// # Architecture
//
// The module is organized bottom-up, each layer consuming only the one
// directly below it:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  driver/      GenericDriver + NetworkDriver (façade)     │
//	├─────────────────────────────────────────────────────────┤
//	│  privilege/   PrivilegeMap, escalate/deescalate engine   │
//	├─────────────────────────────────────────────────────────┤
//	│  channel/     Prompt search, echo handling, in-channel   │
//	│               authentication, ANSI stripping             │
//	├─────────────────────────────────────────────────────────┤
//	│  transport/   SystemSSH, NativeSSH, Telnet byte pipes    │
//	└─────────────────────────────────────────────────────────┘
//
// response holds the Response/MultiResponse value objects returned by every
// driver operation. internal/log holds the redacting slog handler and the
// channel-log sink adapter shared across the above.
//
// # Quick start
//
//	tr := transport.NewSystemSSH(transport.Options{
//		Host: "rtr1", Port: 22, Username: "admin", Password: "secret",
//	})
//	gd := driver.NewGeneric("rtr1", tr, channel.DefaultConfig(promptPattern),
//		driver.AuthConfig{Username: "admin", Password: "secret"},
//		driver.DefaultTimeouts())
//	if err := gd.Open(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer gd.Close(ctx)
//
//	resp, err := gd.SendCommand(ctx, "show version", nil, 0)
package netcli
