package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zeroasic/umilink/queue"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete residual named queues from a previous run",
	Run: func(cmd *cobra.Command, args []string) {
		reg := queue.GetDefaultRegistry()

		for _, q := range []string{sb2dut, dut2sb, host2dut, dut2host} {
			reg.Reset(q)
			logrus.Infof("reset queue %s", q)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
