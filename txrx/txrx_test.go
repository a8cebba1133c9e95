package txrx

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/umi"
)

func mustEncode(p *umi.Packet) []byte {
	frame, err := p.Encode()
	if err != nil {
		panic(err)
	}

	return frame
}

var _ = Describe("TxRx engine", func() {
	var (
		mockCtrl *gomock.Controller
		tx       *MockQueue
		rx       *MockQueue
		endpoint *TxRx

		sent [][]byte
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tx = NewMockQueue(mockCtrl)
		rx = NewMockQueue(mockCtrl)
		endpoint = &TxRx{
			timeout: 100 * time.Millisecond,
			tx:      tx,
			rx:      rx,
		}

		sent = nil
		tx.EXPECT().
			Push(gomock.Any(), gomock.Any()).
			DoAndReturn(func(frame []byte, _ time.Duration) error {
				sent = append(sent, frame)
				return nil
			}).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should send a posted write as a single packet", func() {
		err := endpoint.Write32(0x7000000C, 0x00000000, 0, true)

		Expect(err).ToNot(HaveOccurred())
		Expect(sent).To(HaveLen(1))

		p, err := umi.Decode(sent[0])
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Opcode).To(Equal(umi.OpWritePosted))
		Expect(p.Address).To(Equal(uint64(0x7000000C)))
		Expect(p.Payload).To(Equal([]byte{0, 0, 0, 0}))
		Expect(p.EOM).To(BeTrue())
	})

	It("should split a large write at increasing addresses", func() {
		data := make([]byte, 80)
		for i := range data {
			data[i] = byte(i)
		}

		err := endpoint.Write(0x1000, data, 0x0000110000000000, false)

		Expect(err).ToNot(HaveOccurred())
		Expect(sent).To(HaveLen(3))

		expected := []struct {
			addr uint64
			size int
			eom  bool
		}{
			{0x1000, 32, false},
			{0x1020, 32, false},
			{0x1040, 16, true},
		}

		offset := 0
		for i, want := range expected {
			p, err := umi.Decode(sent[i])
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Opcode).To(Equal(umi.OpWrite))
			Expect(p.Address).To(Equal(want.addr))
			Expect(p.Payload).To(Equal(data[offset : offset+want.size]))
			Expect(p.EOM).To(Equal(want.eom))
			offset += want.size
		}
	})

	It("should reject an empty write", func() {
		err := endpoint.Write(0x1000, nil, 0, false)
		Expect(err).To(MatchError(umi.ErrInvalidLength))
	})

	It("should complete a read with the matching response", func() {
		rsp := mustEncode(umi.MakePacketBuilder().
			WithOpcode(umi.OpReadResponse).
			WithAddress(0x0000110000000000).
			WithSrcAddr(0x60).
			WithPayload([]byte{0xCE, 0xFA, 0xFE, 0xCA, 0x0D, 0xD0, 0xAD, 0xBA}).
			Build())

		rx.EXPECT().Pop(gomock.Any()).Return(rsp, nil)

		value, err := endpoint.Read64(0x60, 0x0000110000000000)

		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal(uint64(0xBAADD00DCAFEFACE)))

		Expect(sent).To(HaveLen(1))
		req, err := umi.Decode(sent[0])
		Expect(err).ToNot(HaveOccurred())
		Expect(req.Opcode).To(Equal(umi.OpReadRequest))
		Expect(req.Address).To(Equal(uint64(0x60)))
		Expect(req.SrcAddr).To(Equal(uint64(0x0000110000000000)))
		Expect(req.Length).To(Equal(8))
	})

	It("should discard a response routed to another address", func() {
		stale := mustEncode(umi.MakePacketBuilder().
			WithOpcode(umi.OpReadResponse).
			WithAddress(0xDEAD).
			WithPayload([]byte{0xFF}).
			Build())
		matching := mustEncode(umi.MakePacketBuilder().
			WithOpcode(umi.OpReadResponse).
			WithAddress(0x0000110000000000).
			WithPayload([]byte{0x0D}).
			Build())

		gomock.InOrder(
			rx.EXPECT().Pop(gomock.Any()).Return(stale, nil),
			rx.EXPECT().Pop(gomock.Any()).Return(matching, nil),
		)

		value, err := endpoint.Read8(0x10, 0x0000110000000000)

		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal(uint8(0x0D)))
	})

	It("should fail a read whose response has the wrong length", func() {
		rsp := mustEncode(umi.MakePacketBuilder().
			WithOpcode(umi.OpReadResponse).
			WithAddress(0x0000110000000000).
			WithPayload([]byte{1, 2}).
			Build())

		rx.EXPECT().Pop(gomock.Any()).Return(rsp, nil)

		_, err := endpoint.Read32(0x50, 0x0000110000000000)

		Expect(err).To(MatchError(ErrProtocolMismatch))
	})

	It("should surface a timeout when no response arrives", func() {
		rx.EXPECT().Pop(gomock.Any()).Return(nil, queue.ErrTimeout)

		_, err := endpoint.Read32(0x50, 0x0000110000000000)

		Expect(err).To(MatchError(queue.ErrTimeout))
	})

	It("should split a large read into sequential requests", func() {
		rx.EXPECT().
			Pop(gomock.Any()).
			DoAndReturn(func(_ time.Duration) ([]byte, error) {
				req, err := umi.Decode(sent[len(sent)-1])
				Expect(err).ToNot(HaveOccurred())

				payload := make([]byte, req.Length)
				for i := range payload {
					payload[i] = byte(req.Address) + byte(i)
				}

				return mustEncode(umi.MakePacketBuilder().
					WithOpcode(umi.OpReadResponse).
					WithAddress(req.SrcAddr).
					WithSrcAddr(req.Address).
					WithPayload(payload).
					Build()), nil
			}).
			Times(2)

		data, err := endpoint.Read(0x100, 40, 0x0000110000000000)

		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(HaveLen(40))
		Expect(sent).To(HaveLen(2))

		second, err := umi.Decode(sent[1])
		Expect(err).ToNot(HaveOccurred())
		Expect(second.Address).To(Equal(uint64(0x120)))
		Expect(second.Length).To(Equal(8))
	})
})

var _ = Describe("TxRx lifecycle", func() {
	var reg *queue.Registry

	BeforeEach(func() {
		reg = queue.NewRegistry()
	})

	It("should open bound to two queues", func() {
		endpoint, err := Open(reg, "host2dut_0.q", "dut2host_0.q")

		Expect(err).ToNot(HaveOccurred())
		Expect(endpoint.TxQueue()).ToNot(BeNil())
		Expect(endpoint.RxQueue()).ToNot(BeNil())
	})

	It("should refuse operations before bind", func() {
		endpoint := OpenDeferred(reg)

		err := endpoint.Write8(0x10, 1, 0, true)
		Expect(err).To(MatchError(ErrNotBound))

		_, err = endpoint.Read8(0x10, 0)
		Expect(err).To(MatchError(ErrNotBound))
	})

	It("should allow re-binding before first use", func() {
		endpoint := OpenDeferred(reg)

		Expect(endpoint.Bind("a2b_0.q", "b2a_0.q")).To(Succeed())
		Expect(endpoint.Bind("a2b_1.q", "b2a_1.q")).To(Succeed())

		// The first pair must have been released.
		_, err := reg.Open("a2b_0.q", queue.RoleProducer)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should refuse binding after first use", func() {
		endpoint, err := Open(reg, "a2b_0.q", "b2a_0.q")
		Expect(err).ToNot(HaveOccurred())

		Expect(endpoint.Write8(0x10, 1, 0, true)).To(Succeed())

		err = endpoint.Bind("a2b_1.q", "b2a_1.q")
		Expect(err).To(MatchError(ErrAlreadyBound))
	})

	It("should refuse sharing a queue pair between two endpoints", func() {
		_, err := Open(reg, "a2b_0.q", "b2a_0.q")
		Expect(err).ToNot(HaveOccurred())

		_, err = Open(reg, "a2b_0.q", "b2a_0.q")
		Expect(err).To(MatchError(queue.ErrQueueInUse))
	})

	It("should fail operations after close", func() {
		endpoint, err := Open(reg, "a2b_0.q", "b2a_0.q")
		Expect(err).ToNot(HaveOccurred())

		Expect(endpoint.Close()).To(Succeed())
		Expect(endpoint.Close()).To(Succeed())

		err = endpoint.Write8(0x10, 1, 0, true)
		Expect(err).To(MatchError(ErrEndpointClosed))

		err = endpoint.Bind("a2b_1.q", "b2a_1.q")
		Expect(err).To(MatchError(ErrEndpointClosed))
	})
})
