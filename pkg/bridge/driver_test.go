package bridge

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl  *gomock.Controller
		transport *MockTransport
		driver    *Driver
		last      Frame
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		transport = NewMockTransport(mockCtrl)
		driver = New(transport)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectRequest := func(op Op) *gomock.Call {
		return transport.EXPECT().Write(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, raw []byte) error {
				f, err := DecodeRequest(raw)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Op).To(Equal(op))
				last = f
				return nil
			})
	}

	reply := func(st rio.Status, pl []byte) *gomock.Call {
		return transport.EXPECT().Read(gomock.Any()).
			DoAndReturn(func(context.Context) ([]byte, error) {
				return EncodeResponse(Frame{Seq: last.Seq, Op: last.Op, Status: st, Payload: pl})
			})
	}

	It("should write a register", func() {
		expectRequest(OpWriteRegister)
		reply(rio.StatusSuccess, nil)

		st := driver.WriteRegister(7, 0x18002, []byte{0x05})

		Expect(st).To(Equal(rio.StatusSuccess))
		Expect(last.Payload).To(Equal([]byte{
			0x07, 0x00, 0x00, 0x00,
			0x02, 0x80, 0x01, 0x00,
			0x05,
		}))
	})

	It("should read a register", func() {
		expectRequest(OpReadRegister)
		reply(rio.StatusSuccess, []byte{0x42, 0x43})

		buf := make([]byte, 2)
		st := driver.ReadRegister(7, 0x1800A, buf)

		Expect(st).To(Equal(rio.StatusSuccess))
		Expect(buf).To(Equal([]byte{0x42, 0x43}))
	})

	It("should pass target statuses through", func() {
		expectRequest(OpOpen)
		reply(rio.StatusSignatureMismatch, []byte{0, 0, 0, 0})

		_, err := rio.Open(driver, rio.Config{Bitfile: "NiFpga_Main.lvbitx", Signature: "X", Target: "RIO0"})

		Expect(errors.Is(err, rio.ErrBitfileMismatch)).To(BeTrue())
	})

	It("should report transport failures as hardware faults", func() {
		transport.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("pipe error"))

		st := driver.Run(1)

		Expect(st).To(Equal(rio.StatusHardwareFault))
		Expect(errors.Is(st.Err(), rio.ErrIO)).To(BeTrue())
	})

	It("should drop stale responses", func() {
		expectRequest(OpAbort)
		gomock.InOrder(
			transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(context.Context) ([]byte, error) {
				return EncodeResponse(Frame{Seq: last.Seq - 1, Op: OpWaitIrq, Status: rio.StatusTransferAborted})
			}),
			reply(rio.StatusSuccess, nil),
		)

		Expect(driver.Abort(1)).To(Equal(rio.StatusSuccess))
	})

	It("should reject corrupted frames", func() {
		expectRequest(OpReset)
		transport.EXPECT().Read(gomock.Any()).Return([]byte{0x01, 0x02, 0x03}, nil)

		Expect(driver.Reset(1)).To(Equal(rio.StatusHardwareFault))
	})

	It("should reject responses for another command", func() {
		expectRequest(OpDownload)
		transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(context.Context) ([]byte, error) {
			return EncodeResponse(Frame{Seq: last.Seq, Op: OpRun})
		})

		Expect(driver.Download(1)).To(Equal(rio.StatusHardwareFault))
	})

	It("should abort waits when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, timedOut, st := driver.WaitOnIrqs(ctx, 1, 1, rio.IRQ0, rio.Infinite)

		Expect(timedOut).To(BeFalse())
		Expect(st).To(Equal(rio.StatusTransferAborted))
	})

	It("should report an irq timeout without an error", func() {
		expectRequest(OpWaitIrq)
		reply(rio.StatusSuccess, []byte{0, 0, 0, 0, 1})

		fired, timedOut, st := driver.WaitOnIrqs(context.Background(), 1, 1, rio.IRQ3, 0)

		Expect(st).To(Equal(rio.StatusSuccess))
		Expect(timedOut).To(BeTrue())
		Expect(fired).To(BeZero())
	})

	It("should report a fifo timeout with partial progress", func() {
		expectRequest(OpWriteFifo)
		reply(rio.StatusFifoTimeout, []byte{1, 0, 0, 0, 0, 0, 0, 0})

		n, space, st := driver.WriteFifo(context.Background(), 1, 0, make([]byte, 8), 4, 0)

		Expect(st).To(Equal(rio.StatusFifoTimeout))
		Expect(n).To(Equal(1))
		Expect(space).To(BeZero())
	})

	It("should reject fifo elements larger than a frame", func() {
		buf := make([]byte, MaxPayload)

		n, _, st := driver.ReadFifo(context.Background(), 1, 0, buf, MaxPayload, 0)
		Expect(st).To(Equal(rio.StatusInvalidParameter))
		Expect(n).To(BeZero())

		n, _, st = driver.WriteFifo(context.Background(), 1, 1, buf[:MaxPayload-10], MaxPayload-10, 0)
		Expect(st).To(Equal(rio.StatusInvalidParameter))
		Expect(n).To(BeZero())

		_, st = driver.AcquireFifoRead(context.Background(), 1, 0, buf, 2, 0)
		Expect(st).To(Equal(rio.StatusInvalidParameter))
	})

	It("should retry a timed out acquisition", func() {
		gomock.InOrder(
			expectRequest(OpAcquireRead),
			reply(rio.StatusFifoTimeout, []byte{0, 0, 0, 0}),
			expectRequest(OpAcquireRead),
			reply(rio.StatusSuccess, []byte{3, 0, 0, 0, 0x00, 0x07, 0xFF, 0xFD}),
		)

		dst := make([]byte, 4)
		remaining, st := driver.AcquireFifoRead(context.Background(), 7, 0, dst, 2, 3*PollSlice/2)

		Expect(st).To(Equal(rio.StatusSuccess))
		Expect(remaining).To(Equal(3))
		Expect(dst).To(Equal([]byte{0x00, 0x07, 0xFF, 0xFD}))
	})

	It("should carry write region data in the release frame", func() {
		expectRequest(OpReleaseFifo)
		reply(rio.StatusSuccess, nil)

		st := driver.ReleaseFifoElements(7, 1, 2, []byte{0, 0, 0, 0xA0, 0, 0, 0, 0xA1})

		Expect(st).To(Equal(rio.StatusSuccess))
		Expect(last.Payload).To(Equal([]byte{
			0x07, 0x00, 0x00, 0x00,
			0x01, 0x00, 0x00, 0x00,
			0x02, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0xA0, 0x00, 0x00, 0x00, 0xA1,
		}))
	})
})

var _ = Describe("Driver over a loopback", func() {
	var (
		catalog *rio.Catalog
		sim     *rio.SimDriver
		driver  *Driver
		session *rio.Session

		control  = rio.NewRegister("U8Control", 0x18002, codec.Unsigned(8), rio.Control)
		result   = rio.NewRegister("U8Result", 0x1800A, codec.Unsigned(8), rio.Indicator)
		samples  = rio.NewFifo("Samples", 0, codec.Signed(16), rio.Indicator)
		commands = rio.NewFifo("Commands", 1, codec.Unsigned(32), rio.Control)
	)

	BeforeEach(func() {
		var err error
		catalog, err = rio.NewCatalog("Main", "NiFpga_Main.lvbitx", "728411ED7A6557687BCF28DB1D70ACF2",
			control, result, samples, commands)
		Expect(err).NotTo(HaveOccurred())

		sim = rio.NewSimDriver(catalog)
		driver = New(NewLoopback(NewServer(sim, Info{Firmware: "1.2.0", Serial: "LOOP", Targets: []string{"RIO0"}})))
		session, err = rio.Open(driver, rio.ConfigFor(catalog, "RIO0"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(session.Close()).To(Succeed())
			Expect(driver.Shutdown()).To(Succeed())
		})
	})

	It("should report bridge info", func() {
		info, err := driver.Info(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(info).To(Equal(Info{Firmware: "1.2.0", Serial: "LOOP", Targets: []string{"RIO0"}}))
	})

	It("should read and write registers", func() {
		Expect(session.Write(control, codec.Uint(9))).To(Succeed())
		v, err := sim.Peek("RIO0", "U8Control")
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Uint()).To(Equal(uint64(9)))

		Expect(sim.Poke("RIO0", "U8Result", codec.Uint(0x7E))).To(Succeed())
		got, err := session.Read(result)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Uint()).To(Equal(uint64(0x7E)))
	})

	It("should surface target errors", func() {
		sim.FailNext(rio.StatusCommunicationTimeout)
		_, err := session.Read(result)
		Expect(errors.Is(err, rio.ErrIO)).To(BeTrue())
	})

	It("should stream fifo elements with partial writes", func() {
		fifo, err := session.Fifo(commands)
		Expect(err).NotTo(HaveOccurred())
		Expect(fifo.Configure(4)).To(Equal(4))

		elements := []codec.Value{codec.Uint(1), codec.Uint(2), codec.Uint(3), codec.Uint(4), codec.Uint(5), codec.Uint(6)}
		remaining, err := fifo.Write(elements, 10*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(Equal(2))

		drained, err := sim.TargetRead("RIO0", "Commands", 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(drained).To(HaveLen(4))

		remaining, err = fifo.Write(elements[4:], time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeZero())
	})

	It("should read fifo elements across poll slices", func() {
		fifo, err := session.Fifo(samples)
		Expect(err).NotTo(HaveOccurred())

		go func() {
			defer GinkgoRecover()
			time.Sleep(3 * PollSlice / 2)
			_, err := sim.TargetWrite("RIO0", "Samples", codec.Int(-5), codec.Int(6))
			Expect(err).NotTo(HaveOccurred())
		}()

		got, remaining, err := fifo.Read(2, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeZero())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Int()).To(Equal(int64(-5)))
		Expect(got[1].Int()).To(Equal(int64(6)))
	})

	It("should hold acquired elements until release", func() {
		fifo, err := session.Fifo(samples)
		Expect(err).NotTo(HaveOccurred())
		_, err = sim.TargetWrite("RIO0", "Samples", codec.Int(11), codec.Int(-12), codec.Int(13))
		Expect(err).NotTo(HaveOccurred())

		region, remaining, err := fifo.AcquireRead(2, time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(Equal(1))
		Expect(region.Elements[0].Int()).To(Equal(int64(11)))
		Expect(region.Elements[1].Int()).To(Equal(int64(-12)))

		_, err = fifo.Configure(8)
		Expect(errors.Is(err, rio.ErrInvalidState)).To(BeTrue())

		Expect(region.Release()).To(Succeed())
		Expect(errors.Is(region.Release(), rio.ErrInvalidState)).To(BeTrue())

		got, remaining, err := fifo.Read(1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(BeZero())
		Expect(got[0].Int()).To(Equal(int64(13)))
	})

	It("should commit a write region on release", func() {
		fifo, err := session.Fifo(commands)
		Expect(err).NotTo(HaveOccurred())

		region, _, err := fifo.AcquireWrite(2, time.Second)
		Expect(err).NotTo(HaveOccurred())
		region.Elements[0] = codec.Uint(0xCAFE)
		region.Elements[1] = codec.Uint(0xBEEF)

		pending, err := sim.TargetRead("RIO0", "Commands", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(region.Release()).To(Succeed())
		got, err := sim.TargetRead("RIO0", "Commands", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Uint()).To(Equal(uint64(0xCAFE)))
		Expect(got[1].Uint()).To(Equal(uint64(0xBEEF)))
	})

	It("should wait for interrupts across poll slices", func() {
		waiter, err := session.IrqWaiter()
		Expect(err).NotTo(HaveOccurred())
		defer waiter.Close()

		go func() {
			time.Sleep(2 * PollSlice)
			sim.RaiseIrq("RIO0", rio.IRQ4)
		}()

		fired, timedOut, err := waiter.Wait(rio.IRQ4|rio.IRQ5, 2*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(timedOut).To(BeFalse())
		Expect(fired).To(Equal(rio.IRQ4))

		Expect(waiter.Acknowledge(rio.IRQ4)).To(Succeed())
		_, timedOut, err = waiter.Wait(rio.IRQ4, 3*PollSlice)
		Expect(err).NotTo(HaveOccurred())
		Expect(timedOut).To(BeTrue())
	})

	It("should abandon a blocked wait when the session closes", func() {
		waiter, err := session.IrqWaiter()
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() {
			_, _, err := waiter.Wait(rio.IRQ0, rio.Infinite)
			done <- err
		}()
		time.Sleep(PollSlice)
		Expect(session.Close()).To(Succeed())

		var waitErr error
		Eventually(done, 2*time.Second).Should(Receive(&waitErr))
		Expect(errors.Is(waitErr, rio.ErrSessionClosed)).To(BeTrue())
	})
})
