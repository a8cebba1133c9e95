// The umilink command drives an in-process memory device over the
// transaction protocol, reproducing the reference bring-up and traffic
// sequence of the original RTL testbench.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Queue identifiers of the two logical links: the side-band link for
// control-register access and the main memory link.
var (
	sb2dut   = "sb2dut_0.q"
	dut2sb   = "dut2sb_0.q"
	host2dut = "host2dut_0.q"
	dut2host = "dut2host_0.q"
)

var rootCmd = &cobra.Command{
	Use: "umilink",
	Short: "umilink exercises a memory device over named transaction " +
		"queues.",
}

func loadEnv() {
	// Optional .env overrides for the queue identifiers.
	_ = godotenv.Load()

	for _, q := range []struct {
		env    string
		target *string
	}{
		{"UMILINK_SB2DUT", &sb2dut},
		{"UMILINK_DUT2SB", &dut2sb},
		{"UMILINK_HOST2DUT", &host2dut},
		{"UMILINK_DUT2HOST", &dut2host},
	} {
		if v := os.Getenv(q.env); v != "" {
			*q.target = v
		}
	}
}

func main() {
	loadEnv()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
