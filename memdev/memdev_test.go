package memdev_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zeroasic/umilink/memdev"
	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/txrx"
)

const (
	hostSrcAddr = uint64(0x0000110000000000)
	sbSrcAddr   = uint64(0x0000010000000000)
)

// buildLink wires one endpoint to one device over a fresh queue pair.
func buildLink(reg *queue.Registry, prefix string) (*txrx.TxRx, *memdev.Comp) {
	host2dut := prefix + "2dut_0.q"
	dut2host := "dut2" + prefix + "_0.q"

	dev, err := memdev.MakeBuilder().
		WithName("DUT-" + prefix).
		WithRegistry(reg).
		WithRxQueue(host2dut).
		WithTxQueue(dut2host).
		WithPollInterval(time.Millisecond).
		Build()
	Expect(err).ToNot(HaveOccurred())
	dev.Start()

	host, err := txrx.MakeBuilder().
		WithRegistry(reg).
		WithTxQueue(host2dut).
		WithRxQueue(dut2host).
		WithTimeout(time.Second).
		Build()
	Expect(err).ToNot(HaveOccurred())

	return host, dev
}

var _ = Describe("Memory device end to end", func() {
	var (
		reg  *queue.Registry
		host *txrx.TxRx
		dev  *memdev.Comp
	)

	BeforeEach(func() {
		reg = queue.NewRegistry()
		host, dev = buildLink(reg, "host")
	})

	AfterEach(func() {
		dev.Stop()
		Expect(host.Close()).To(Succeed())
	})

	It("should round-trip every scalar width", func() {
		Expect(host.Write8(0x10, 0x5A, hostSrcAddr, false)).To(Succeed())
		Expect(host.Write16(0x20, 0xCAFE, hostSrcAddr, false)).To(Succeed())
		Expect(host.Write32(0x50, 0xDEADBEEF, hostSrcAddr, false)).To(Succeed())
		Expect(host.Write64(0x60, 0xBAADD00DCAFEFACE, hostSrcAddr, false)).
			To(Succeed())

		Expect(host.Read8(0x10, hostSrcAddr)).To(Equal(uint8(0x5A)))
		Expect(host.Read16(0x20, hostSrcAddr)).To(Equal(uint16(0xCAFE)))
		Expect(host.Read32(0x50, hostSrcAddr)).To(Equal(uint32(0xDEADBEEF)))
		Expect(host.Read64(0x60, hostSrcAddr)).
			To(Equal(uint64(0xBAADD00DCAFEFACE)))
	})

	It("should expose the byte lanes of a scattered 32-bit value", func() {
		// The four bytes of 0xBAADF00D written one per address, eight
		// bytes apart.
		for i, b := range []uint8{0x0D, 0xF0, 0xAD, 0xBA} {
			addr := uint64(0x10 + i*8)
			Expect(host.Write8(addr, b, hostSrcAddr, false)).To(Succeed())
		}

		Expect(host.Read8(0x10, hostSrcAddr)).To(Equal(uint8(0x0D)))
		Expect(host.Read8(0x18, hostSrcAddr)).To(Equal(uint8(0xF0)))
		Expect(host.Read8(0x20, hostSrcAddr)).To(Equal(uint8(0xAD)))
		Expect(host.Read8(0x28, hostSrcAddr)).To(Equal(uint8(0xBA)))
	})

	It("should reinterpret a 2-byte view as the original 4-byte value", func() {
		// 0xB0BACAFE written as two 16-bit halves at 0x40.
		Expect(host.Write16(0x40, 0xCAFE, hostSrcAddr, false)).To(Succeed())
		Expect(host.Write16(0x42, 0xB0BA, hostSrcAddr, false)).To(Succeed())

		Expect(host.Read32(0x40, hostSrcAddr)).To(Equal(uint32(0xB0BACAFE)))
	})

	It("should keep distinct addresses from corrupting each other", func() {
		patterns := map[uint64]uint64{
			0x70: 0xBAADD70DCAFEFACE,
			0x80: 0xBAADD80DCAFEFACE,
			0x90: 0xBAADD90DCAFEFACE,
			0xA0: 0xBAADDA0DCAFEFACE,
			0xB0: 0xBAADDB0DCAFEFACE,
		}

		for addr, v := range patterns {
			Expect(host.Write64(addr, v, hostSrcAddr, false)).To(Succeed())
		}

		for addr, v := range patterns {
			Expect(host.Read64(addr, hostSrcAddr)).To(Equal(v))
		}
	})

	It("should serve a high sparse address window", func() {
		values := []uint32{0xABB00BBA, 0xABB10BBA, 0xABB20BBA, 0xABB30BBA}

		for i, v := range values {
			addr := hostSrcAddr + uint64(i*0x10)
			Expect(host.Write32(addr, v, sbSrcAddr, false)).To(Succeed())
		}

		for i, v := range values {
			addr := hostSrcAddr + uint64(i*0x10)
			Expect(host.Read32(addr, sbSrcAddr)).To(Equal(v))
		}
	})

	It("should preserve order across back-to-back writes and reads", func() {
		for i := 0; i < 5; i++ {
			addr := uint64(0x100 + i*8)
			value := uint64(0xBAADD00D00000000) + uint64(i)
			Expect(host.Write64(addr, value, hostSrcAddr, false)).To(Succeed())
		}

		for i := 0; i < 5; i++ {
			addr := uint64(0x100 + i*8)
			want := uint64(0xBAADD00D00000000) + uint64(i)
			Expect(host.Read64(addr, hostSrcAddr)).To(Equal(want))
		}
	})

	It("should move block transfers larger than one packet", func() {
		data := make([]byte, 100)
		for i := range data {
			data[i] = byte(i * 7)
		}

		Expect(host.Write(0x2000, data, hostSrcAddr, false)).To(Succeed())
		Expect(host.Read(0x2000, 100, hostSrcAddr)).To(Equal(data))
	})
})

var _ = Describe("Side-band bring-up", func() {
	var (
		reg *queue.Registry
		sb  *txrx.TxRx
		dev *memdev.Comp
	)

	BeforeEach(func() {
		reg = queue.NewRegistry()
		sb, dev = buildLink(reg, "sb")
	})

	AfterEach(func() {
		dev.Stop()
		Expect(sb.Close()).To(Succeed())
	})

	It("should run the 2d bring-up register sequence", func() {
		Expect(sb.Write32(memdev.RegLocalReset, 0, 0, true)).To(Succeed())
		Expect(sb.Read32(memdev.RegLocalLinkCtrl, sbSrcAddr)).
			To(Equal(uint32(0)))

		Expect(sb.Write32(memdev.RegLocalRxCtrl,
			memdev.CtrlEnable, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegRemoteChipID, 1, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegRemoteRxCtrl,
			memdev.CtrlEnable, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegRemoteTxCtrl,
			memdev.CtrlEnable, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegLocalTxCtrl,
			memdev.CtrlEnable, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegRemoteTxCtrl,
			memdev.CtrlEnable|memdev.CtrlCredit, 0, true)).To(Succeed())
		Expect(sb.Write32(memdev.RegLocalTxCtrl,
			memdev.CtrlEnable|memdev.CtrlCredit, 0, true)).To(Succeed())

		Expect(sb.Read32(memdev.RegRemoteLinkCtrl, sbSrcAddr)).
			To(Equal(uint32(0)))

		local := dev.LocalLinkState()
		Expect(local.TxEnabled).To(BeTrue())
		Expect(local.TxCredit).To(BeTrue())
		Expect(local.RxEnabled).To(BeTrue())

		remote := dev.RemoteLinkState()
		Expect(remote.ChipID).To(Equal(uint32(1)))
		Expect(remote.TxEnabled).To(BeTrue())
	})

	It("should configure the 8-byte link width for a 3d topology", func() {
		Expect(sb.Write32(memdev.RegLocalLinkCtrl,
			memdev.LinkWidth8B, 0, true)).To(Succeed())
		Expect(sb.Read32(memdev.RegLocalLinkCtrl, sbSrcAddr)).
			To(Equal(memdev.LinkWidth8B))

		Expect(sb.Write32(memdev.RegRemoteLinkCtrl,
			memdev.LinkWidth8B, 0, true)).To(Succeed())
		Expect(sb.Read32(memdev.RegRemoteLinkCtrl, sbSrcAddr)).
			To(Equal(memdev.LinkWidth8B))

		Expect(dev.LocalLinkState().LinkCtrl).To(Equal(memdev.LinkWidth8B))
	})
})

var _ = Describe("Timeout behavior", func() {
	It("should bound a read against a silent peer", func() {
		reg := queue.NewRegistry()

		host, err := txrx.MakeBuilder().
			WithRegistry(reg).
			WithTxQueue("host2dut_0.q").
			WithRxQueue("dut2host_0.q").
			WithTimeout(50 * time.Millisecond).
			Build()
		Expect(err).ToNot(HaveOccurred())

		start := time.Now()
		_, err = host.Read32(0x50, hostSrcAddr)

		Expect(err).To(MatchError(queue.ErrTimeout))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
	})
})
