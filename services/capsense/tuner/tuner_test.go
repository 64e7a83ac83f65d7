package tuner

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"capsense-go/bus"
	"capsense-go/errcode"
	"capsense-go/x/shmring"
)

// ---- fakes ----

type chunkPort struct {
	out     []byte
	chunk   int
	pending int // TxComplete reports false this many times
	polls   int
	err     error
}

func (p *chunkPort) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	n := len(b)
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	p.out = append(p.out, b[:n]...)
	return n, nil
}

func (p *chunkPort) TxComplete() bool {
	p.polls++
	if p.pending > 0 {
		p.pending--
		return false
	}
	return true
}

func testSnapshot() *Snapshot {
	s := NewSnapshot(3, 5)
	s.SetScanCount(0xA1B2C3D4)
	s.SetThresholds(12, 6)
	s.SetWidgetActive(1, true)
	for i := 0; i < MaxSlots; i++ {
		s.SetSlot(i, SlotData{Filtered: uint16(700 + i), Baseline: uint16(710 + i), Diff: int16(-i)})
	}
	return s
}

func pingPacket(counter uint8) []byte {
	p := Command{Code: CmdPing, Counter: counter}.Encode()
	return p[:]
}

// ---- framing ----

func TestSendFrameExact(t *testing.T) {
	snap := testSnapshot()
	port := &chunkPort{chunk: 7, pending: 3}
	u := NewUART(port, shmring.New(32), snap, Valid)

	if err := u.Send(); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := append([]byte{0x0D, 0x0A}, snap.Bytes()...)
	want = append(want, 0x00, 0xFF, 0xFF)
	if len(port.out) != SnapshotSize+5 {
		t.Fatalf("frame len=%d want %d", len(port.out), SnapshotSize+5)
	}
	if !bytes.Equal(port.out, want) {
		t.Fatalf("frame mismatch")
	}
	if port.polls != 4 {
		t.Fatalf("tx complete polled %d times, want 4", port.polls)
	}

	// Second send produces a second identical frame, nothing more.
	port.out = nil
	if err := u.Send(); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(port.out, want) {
		t.Fatalf("second frame mismatch")
	}
}

func TestSendError(t *testing.T) {
	port := &chunkPort{err: errors.New("boom")}
	u := NewUART(port, shmring.New(32), testSnapshot(), Valid)
	if err := u.Send(); errcode.Of(err) != errcode.Error {
		t.Fatalf("err=%v", err)
	}
}

func TestFindFrame(t *testing.T) {
	snap := testSnapshot()
	stream := []byte{0x55, 0x0D, 0x0D}
	stream = AppendFrame(stream, snap.Bytes())
	stream = append(stream, 0x0D)

	got, n, ok := FindFrame(stream)
	if !ok {
		t.Fatal("frame not found")
	}
	if !bytes.Equal(got, snap.Bytes()) {
		t.Fatal("snapshot mismatch")
	}
	if n != len(stream)-1 {
		t.Fatalf("consumed %d want %d", n, len(stream)-1)
	}

	_, n, ok = FindFrame(stream[n:])
	if ok || n != 0 {
		t.Fatalf("tail: ok=%v n=%d", ok, n)
	}
}

// stepClock advances by step on every reading.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func TestPacedPortWaitsForLine(t *testing.T) {
	clk := &stepClock{t: time.Unix(100, 0)}
	inner := &chunkPort{}
	p := NewPacedPort(inner, 10_000, 10) // 1ms per character
	p.now = clk.now

	if _, err := p.Write([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	clk.t = clk.t.Add(4 * time.Millisecond)
	if p.TxComplete() {
		t.Fatal("complete after 4ms of a 5ms burst")
	}
	clk.t = time.Unix(100, 0).Add(5 * time.Millisecond)
	if !p.TxComplete() {
		t.Fatal("not complete after 5ms")
	}

	// An idle line restarts the estimate from now.
	clk.t = time.Unix(100, 0).Add(20 * time.Millisecond)
	_, _ = p.Write([]byte{6, 7})
	clk.t = time.Unix(100, 0).Add(21 * time.Millisecond)
	if p.TxComplete() {
		t.Fatal("complete before second burst drained")
	}
	clk.t = time.Unix(100, 0).Add(22 * time.Millisecond)
	if !p.TxComplete() {
		t.Fatal("second burst not complete")
	}

	// The wrapped port's own completion still gates.
	inner.pending = 1
	if p.TxComplete() {
		t.Fatal("ignored inner TxComplete")
	}
}

func TestSendBlocksForLineTime(t *testing.T) {
	start := time.Unix(200, 0)
	clk := &stepClock{t: start, step: time.Millisecond}
	p := NewPacedPort(&chunkPort{chunk: 32}, 10_000, 10)
	p.now = clk.now
	u := NewUART(p, shmring.New(32), testSnapshot(), Valid)

	if err := u.Send(); err != nil {
		t.Fatal(err)
	}
	if spent := clk.t.Sub(start); spent < time.Duration(FrameSize)*time.Millisecond {
		t.Fatalf("send returned after %v, frame needs %v", spent, time.Duration(FrameSize)*time.Millisecond)
	}
}

// ---- command packets ----

func TestCRC16CheckValue(t *testing.T) {
	if got := crc16([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("crc=%04x", got)
	}
}

func TestParseCommand(t *testing.T) {
	in := Command{Code: CmdWrite, Counter: 9, Size: 2, Offset: OffTouchTh, Data: [4]byte{20, 10}}
	p := in.Encode()
	if p[0] != 0x0D || p[1] != 0x0A || p[13] != 0x00 || p[14] != 0xFF || p[15] != 0xFF {
		t.Fatalf("framing: % x", p)
	}
	out, err := ParseCommand(p[:])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestCheckIntegrityRejects(t *testing.T) {
	good := pingPacket(1)
	cases := map[string]func(p []byte){
		"header":  func(p []byte) { p[0] = 0 },
		"trailer": func(p []byte) { p[15] = 0 },
		"code":    func(p []byte) { p[2] = 0x7F },
		"size":    func(p []byte) { p[4] = 5 },
		"crc":     func(p []byte) { p[7] ^= 1 },
	}
	for name, mut := range cases {
		p := append([]byte(nil), good...)
		mut(p)
		if Valid(p) {
			t.Errorf("%s: corrupted packet accepted", name)
		}
	}
	if Valid(good[:15]) {
		t.Error("short packet accepted")
	}
	if !Valid(good) {
		t.Error("good packet rejected")
	}
}

// ---- inbound resync ----

func TestReceiveResyncsOneNoiseByte(t *testing.T) {
	rx := shmring.New(64)
	snap := testSnapshot()
	u := NewUART(&chunkPort{}, rx, snap, Valid)

	pkt := pingPacket(42)
	rx.TryWriteFrom([]byte{0x55})
	rx.TryWriteFrom(pkt)

	cmd, s, ok := u.Receive()
	if !ok {
		t.Fatal("command not recognised")
	}
	if !bytes.Equal(cmd, pkt) {
		t.Fatalf("cmd=% x want % x", cmd, pkt)
	}
	if s != snap {
		t.Fatal("wrong snapshot")
	}
	if u.Resyncs() != 1 {
		t.Fatalf("resyncs=%d want 1", u.Resyncs())
	}
	if rx.Available() != 0 {
		t.Fatalf("leftover=%d", rx.Available())
	}
}

func TestReceiveOneCommandPerCall(t *testing.T) {
	rx := shmring.New(64)
	u := NewUART(&chunkPort{}, rx, testSnapshot(), Valid)

	a, b := pingPacket(1), pingPacket(2)
	rx.TryWriteFrom(a)
	rx.TryWriteFrom(b)

	cmd, _, ok := u.Receive()
	if !ok || !bytes.Equal(cmd, a) {
		t.Fatalf("first: ok=%v cmd=% x", ok, cmd)
	}
	if rx.Available() != CommandSize {
		t.Fatalf("second packet consumed early: avail=%d", rx.Available())
	}
	cmd, _, ok = u.Receive()
	if !ok || !bytes.Equal(cmd, b) {
		t.Fatalf("second: ok=%v cmd=% x", ok, cmd)
	}
	if _, _, ok = u.Receive(); ok {
		t.Fatal("third receive surfaced a command")
	}
}

func TestReceiveDrainsNoise(t *testing.T) {
	rx := shmring.New(64)
	u := NewUART(&chunkPort{}, rx, testSnapshot(), Valid)

	noise := bytes.Repeat([]byte{0x0D, 0x0A, 0x33}, 13)
	rx.TryWriteFrom(noise)
	if _, _, ok := u.Receive(); ok {
		t.Fatal("noise recognised as command")
	}
	if rx.Available() != 0 {
		t.Fatalf("ring not drained: %d", rx.Available())
	}
	if got, want := u.Resyncs(), uint32(len(noise)-CommandSize+1); got != want {
		t.Fatalf("resyncs=%d want %d", got, want)
	}

	// The window keeps the tail; a packet split across calls still lands.
	// Fifteen stale bytes remain, so each of them slides out first.
	pkt := pingPacket(7)
	rx.TryWriteFrom(pkt[:5])
	if _, _, ok := u.Receive(); ok {
		t.Fatal("partial packet recognised")
	}
	rx.TryWriteFrom(pkt[5:])
	cmd, _, ok := u.Receive()
	if !ok || !bytes.Equal(cmd, pkt) {
		t.Fatalf("split packet: ok=%v cmd=% x", ok, cmd)
	}
}

type countingRing struct {
	*shmring.Ring
	maxAsk int
}

func (r *countingRing) TryReadInto(dst []byte) int {
	if len(dst) > r.maxAsk {
		r.maxAsk = len(dst)
	}
	return r.Ring.TryReadInto(dst)
}

func TestReceiveNeverOverfillsWindow(t *testing.T) {
	rx := &countingRing{Ring: shmring.New(128)}
	u := NewUART(&chunkPort{}, rx, testSnapshot(), Valid)
	rx.TryWriteFrom(bytes.Repeat([]byte{0xEE}, 100))
	u.Receive()
	if rx.maxAsk > CommandSize {
		t.Fatalf("asked for %d bytes", rx.maxAsk)
	}
	if u.win.fill != CommandSize-1 {
		t.Fatalf("fill=%d", u.win.fill)
	}
}

// ---- snapshot ----

func TestSnapshotWriteRegion(t *testing.T) {
	s := testSnapshot()
	if err := s.Write(OffTouchTh, []byte{30, 15}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if th, rel := s.Thresholds(); th != 30 || rel != 15 {
		t.Fatalf("thresholds=%d/%d", th, rel)
	}
	if err := s.Write(OffReleaseTh, []byte{1, 2}); err != errcode.InvalidParams {
		t.Fatalf("overrun err=%v", err)
	}
	if err := s.Write(0, []byte{9}); err != errcode.InvalidParams {
		t.Fatalf("version write err=%v", err)
	}
	if err := s.Write(OffTouchTh, nil); err != errcode.InvalidParams {
		t.Fatalf("empty write err=%v", err)
	}
}

func TestParseSnapshot(t *testing.T) {
	s := testSnapshot()
	got, err := ParseSnapshot(s.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ScanCount() != 0xA1B2C3D4 || !got.WidgetActive(1) || got.WidgetActive(0) {
		t.Fatal("fields lost")
	}
	if d := got.Slot(3); d.Filtered != 703 || d.Baseline != 713 || d.Diff != -3 {
		t.Fatalf("slot=%+v", d)
	}
	if _, err := ParseSnapshot(s.Bytes()[:10]); err != errcode.InvalidPayload {
		t.Fatalf("short err=%v", err)
	}
}

// ---- bus window ----

func TestBusWindow(t *testing.T) {
	b := bus.NewBus(8)
	fw := b.NewConnection("fw")
	tool := b.NewConnection("tool")
	snap := testSnapshot()
	w := NewBusWindow(fw, snap, Valid)
	defer w.Close()

	if err := w.Send(); err != nil {
		t.Fatalf("send: %v", err)
	}
	sub := tool.Subscribe(TopicSnapshot)
	m := <-sub.Channel()
	got, _, ok := FindFrame(m.Payload.([]byte))
	if !ok || !bytes.Equal(got, snap.Bytes()) {
		t.Fatal("retained frame mismatch")
	}

	pkt := pingPacket(3)
	tool.Publish(tool.NewMessage(TopicCommand, append([]byte{0x99}, pkt[:8]...), false))
	tool.Publish(tool.NewMessage(TopicCommand, pkt[8:], false))

	cmd, s, ok := w.Receive()
	if !ok || !bytes.Equal(cmd, pkt) || s != snap {
		t.Fatalf("receive: ok=%v cmd=% x", ok, cmd)
	}
	if _, _, ok := w.Receive(); ok {
		t.Fatal("extra command")
	}
}

func TestBusWindowPublishesOnChange(t *testing.T) {
	b := bus.NewBus(8)
	fw := b.NewConnection("fw")
	sub := b.NewConnection("tool").Subscribe(TopicSnapshot)
	snap := testSnapshot()
	w := NewBusWindow(fw, snap, Valid)
	defer w.Close()

	_ = w.Send()
	_ = w.Send()
	first := <-sub.Channel()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unchanged frame republished: % x", m.Payload)
	default:
	}

	held := append([]byte(nil), first.Payload.([]byte)...)
	snap.SetScanCount(1)
	_ = w.Send()
	second := <-sub.Channel()
	if !bytes.Equal(first.Payload.([]byte), held) {
		t.Fatal("published frame mutated by a later send")
	}
	got, _, ok := FindFrame(second.Payload.([]byte))
	if !ok {
		t.Fatal("second frame not found")
	}
	if s, _ := ParseSnapshot(got); s.ScanCount() != 1 {
		t.Fatalf("scans=%d", s.ScanCount())
	}
}

func TestNone(t *testing.T) {
	var tr Transport = None{}
	if err := tr.Send(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := tr.Receive(); ok {
		t.Fatal("none surfaced a command")
	}
}
