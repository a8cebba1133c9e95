package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zeroasic/umilink/memdev"
	"github.com/zeroasic/umilink/monitoring"
	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/tracerecording"
	"github.com/zeroasic/umilink/txrx"
)

var (
	topo        string
	vldmode     string
	rdymode     string
	logLevel    string
	traceDB     string
	monitor     bool
	monitorPort int
	timeout     time.Duration
)

const (
	hostSrcAddr = uint64(0x0000110000000000)
	sbSrcAddr   = uint64(0x0000010000000000)
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reference bring-up and traffic sequence",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		run()
	},
}

func init() {
	runCmd.Flags().StringVar(&topo, "topo", "2d",
		"link topology, 2d or 3d")
	runCmd.Flags().StringVar(&vldmode, "vldmode", "2",
		"valid handshake mode, kept for testbench compatibility")
	runCmd.Flags().StringVar(&rdymode, "rdymode", "2",
		"ready handshake mode, kept for testbench compatibility")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info",
		"log verbosity level")
	runCmd.Flags().StringVar(&traceDB, "trace-db", "",
		"record frame traces into this SQLite database")
	runCmd.Flags().BoolVar(&monitor, "monitor", false,
		"serve queue and device state over HTTP while running")
	runCmd.Flags().IntVar(&monitorPort, "monitor-port", 0,
		"port for the monitoring server, random if 0")
	runCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second,
		"bound on blocking reads and pushes")

	rootCmd.AddCommand(runCmd)
}

func run() {
	logrus.Infof("### Running %s topology ###", topo)
	logrus.Debugf("valid_mode=%s ready_mode=%s", vldmode, rdymode)

	reg := queue.NewRegistry()

	// Clean up old queues if present.
	for _, q := range []string{sb2dut, dut2sb, host2dut, dut2host} {
		reg.Reset(q)
	}

	sbDev := buildDevice(reg, "DUT-sb", sb2dut, dut2sb)
	memDev := buildDevice(reg, "DUT-mem", host2dut, dut2host)
	defer sbDev.Stop()
	defer memDev.Stop()

	sb := openEndpoint(reg, sb2dut, dut2sb)
	umiLink := openEndpoint(reg, host2dut, dut2host)
	defer sb.Close()
	defer umiLink.Close()

	if traceDB != "" {
		tracer := tracerecording.NewFrameTracer(
			tracerecording.NewSQLiteWriter(traceDB))
		tracerecording.Trace(tracer, sb.TxQueue())
		tracerecording.Trace(tracer, sb.RxQueue())
		tracerecording.Trace(tracer, umiLink.TxQueue())
		tracerecording.Trace(tracer, umiLink.RxQueue())
	}

	if monitor {
		m := monitoring.NewMonitor().WithPortNumber(monitorPort)
		m.RegisterRegistry(reg)
		m.RegisterDevice(sbDev)
		m.RegisterDevice(memDev)
		m.StartServer()
	}

	bringUp(sb)
	runTraffic(umiLink)

	logrus.Info("### TEST PASS ###")
}

func buildDevice(reg *queue.Registry, name, rxID, txID string) *memdev.Comp {
	dev, err := memdev.MakeBuilder().
		WithName(name).
		WithTopology(topo).
		WithRegistry(reg).
		WithRxQueue(rxID).
		WithTxQueue(txID).
		Build()
	if err != nil {
		logrus.Fatalf("cannot build device %s: %v", name, err)
	}

	dev.Start()

	return dev
}

func openEndpoint(reg *queue.Registry, txID, rxID string) *txrx.TxRx {
	endpoint, err := txrx.MakeBuilder().
		WithRegistry(reg).
		WithTxQueue(txID).
		WithRxQueue(rxID).
		WithTimeout(timeout).
		Build()
	if err != nil {
		logrus.Fatalf("cannot open endpoint %s/%s: %v", txID, rxID, err)
	}

	return endpoint
}

// bringUp reproduces the side-band register sequence that prepares both ends
// of the link before memory traffic starts.
func bringUp(sb *txrx.TxRx) {
	logrus.Info("### Side Band loc reset ###")
	mustWrite32(sb, memdev.RegLocalReset, 0x00000000)

	logrus.Info("### Read local reset ###")
	expect32(sb, memdev.RegLocalLinkCtrl, 0x00000000)

	if topo == "3d" {
		logrus.Info("### configure 8B width ###")
		mustWrite32(sb, memdev.RegLocalLinkCtrl, memdev.LinkWidth8B)
		expect32(sb, memdev.RegLocalLinkCtrl, memdev.LinkWidth8B)

		logrus.Info("### configure rmt 8B width ###")
		mustWrite32(sb, memdev.RegRemoteLinkCtrl, memdev.LinkWidth8B)
	}

	logrus.Info("### Rx enable local ###")
	mustWrite32(sb, memdev.RegLocalRxCtrl, memdev.CtrlEnable)

	logrus.Info("### set chipid to 1 ###")
	mustWrite32(sb, memdev.RegRemoteChipID, 0x00000001)

	logrus.Info("### Rx enable remote ###")
	mustWrite32(sb, memdev.RegRemoteRxCtrl, memdev.CtrlEnable)

	logrus.Info("### Tx enable remote ###")
	mustWrite32(sb, memdev.RegRemoteTxCtrl, memdev.CtrlEnable)

	logrus.Info("### Tx enable local ###")
	mustWrite32(sb, memdev.RegLocalTxCtrl, memdev.CtrlEnable)

	logrus.Info("### Tx enable credit ###")
	mustWrite32(sb, memdev.RegRemoteTxCtrl,
		memdev.CtrlEnable|memdev.CtrlCredit)
	mustWrite32(sb, memdev.RegLocalTxCtrl,
		memdev.CtrlEnable|memdev.CtrlCredit)

	logrus.Info("### Read rmt ctrl reset ###")
	want := uint32(0)
	if topo == "3d" {
		want = memdev.LinkWidth8B
	}
	expect32(sb, memdev.RegRemoteLinkCtrl, want)
}

// runTraffic reproduces the memory traffic of the reference testbench: an
// 8-byte pattern sweep, then the 1/2/4/8-byte width chain and its read-back.
func runTraffic(umiLink *txrx.TxRx) {
	logrus.Info("### UMI WRITES ###")

	patterns := []struct {
		addr  uint64
		value uint64
	}{
		{0x70, 0xBAADD70DCAFEFACE},
		{0x80, 0xBAADD80DCAFEFACE},
		{0x90, 0xBAADD90DCAFEFACE},
		{0xA0, 0xBAADDA0DCAFEFACE},
		{0xB0, 0xBAADDB0DCAFEFACE},
	}

	for _, p := range patterns {
		mustWrite64(umiLink, p.addr, p.value)
	}

	// The four bytes of 0xBAADF00D, one byte every eight addresses.
	for i, b := range []uint8{0x0D, 0xF0, 0xAD, 0xBA} {
		if err := umiLink.Write8(uint64(0x10+i*8), b,
			hostSrcAddr, false); err != nil {
			logrus.Fatalf("1-byte write failed: %v", err)
		}
	}

	// 0xB0BACAFE as two 16-bit halves at 0x40.
	for i, h := range []uint16{0xCAFE, 0xB0BA} {
		if err := umiLink.Write16(uint64(0x40+i*2), h,
			hostSrcAddr, false); err != nil {
			logrus.Fatalf("2-byte write failed: %v", err)
		}
	}

	if err := umiLink.Write32(0x50, 0xDEADBEEF, hostSrcAddr, false); err != nil {
		logrus.Fatalf("4-byte write failed: %v", err)
	}

	mustWrite64(umiLink, 0x60, 0xBAADD00DCAFEFACE)

	logrus.Info("### UMI READS ###")

	for i, want := range []uint8{0x0D, 0xF0, 0xAD, 0xBA} {
		got, err := umiLink.Read8(uint64(0x10+i*8), hostSrcAddr)
		if err != nil {
			logrus.Fatalf("1-byte read failed: %v", err)
		}
		logrus.Infof("Read: 0x%02x", got)
		if got != want {
			logrus.Fatalf("read 0x%02x at 0x%x, want 0x%02x",
				got, 0x10+i*8, want)
		}
	}

	got32, err := umiLink.Read32(0x40, hostSrcAddr)
	if err != nil {
		logrus.Fatalf("2-byte read-back failed: %v", err)
	}
	logrus.Infof("Read: 0x%08x", got32)
	if got32 != 0xB0BACAFE {
		logrus.Fatalf("read 0x%08x at 0x40, want 0xB0BACAFE", got32)
	}

	expect32Link(umiLink, 0x50, 0xDEADBEEF)

	expect64(umiLink, 0x60, 0xBAADD00DCAFEFACE)
	for _, p := range patterns {
		expect64(umiLink, p.addr, p.value)
	}
}

func mustWrite32(sb *txrx.TxRx, addr uint64, value uint32) {
	if err := sb.Write32(addr, value, sbSrcAddr, true); err != nil {
		logrus.Fatalf("posted write to 0x%08x failed: %v", addr, err)
	}
}

func mustWrite64(endpoint *txrx.TxRx, addr uint64, value uint64) {
	if err := endpoint.Write64(addr, value, hostSrcAddr, false); err != nil {
		logrus.Fatalf("write to 0x%x failed: %v", addr, err)
	}
}

func expect32(sb *txrx.TxRx, addr uint64, want uint32) {
	got, err := sb.Read32(addr, sbSrcAddr)
	if err != nil {
		logrus.Fatalf("read at 0x%08x failed: %v", addr, err)
	}

	logrus.Infof("Read: 0x%08x", got)
	if got != want {
		logrus.Fatalf("read 0x%08x at 0x%08x, want 0x%08x",
			got, addr, want)
	}
}

func expect32Link(endpoint *txrx.TxRx, addr uint64, want uint32) {
	got, err := endpoint.Read32(addr, hostSrcAddr)
	if err != nil {
		logrus.Fatalf("read at 0x%x failed: %v", addr, err)
	}

	logrus.Infof("Read: 0x%08x", got)
	if got != want {
		logrus.Fatalf("read 0x%08x at 0x%x, want 0x%08x", got, addr, want)
	}
}

func expect64(endpoint *txrx.TxRx, addr uint64, want uint64) {
	got, err := endpoint.Read64(addr, hostSrcAddr)
	if err != nil {
		logrus.Fatalf("read at 0x%x failed: %v", addr, err)
	}

	logrus.Infof("Read: 0x%016x", got)
	if got != want {
		logrus.Fatalf("read 0x%016x at 0x%x, want 0x%016x",
			got, addr, want)
	}
}
