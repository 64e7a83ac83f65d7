//go:build !(rp2040 || rp2350)

// tunerctl talks to a board's tuner link from a host: it decodes the status
// frames the firmware streams and sends command packets typed at a prompt.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/google/shlex"

	"capsense-go/services/capsense/tuner"
	"capsense-go/types"
)

type session struct {
	port    io.Writer
	mu      sync.Mutex
	last    *tuner.Snapshot
	frames  int
	counter uint8
}

func main() {
	addr := flag.String("port", "/dev/ttyUSB0", "serial device")
	baud := flag.Int("baud", 115200, "baud rate")
	parity := flag.String("parity", "none", "none|even|odd")
	watch := flag.Bool("watch", false, "print widget changes as frames arrive")
	flag.Parse()

	par, ok := types.ParseParity(*parity)
	if !ok {
		fmt.Fprintln(os.Stderr, "tunerctl: bad parity", *parity)
		os.Exit(2)
	}
	port, err := serial.Open(&serial.Config{
		Address:  *addr,
		BaudRate: *baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   par.Letter(),
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "tunerctl:", err)
		os.Exit(1)
	}
	defer port.Close()

	s := &session{port: port}
	go s.read(port, *watch)
	s.repl(os.Stdin, os.Stdout)
}

// read reassembles frames from the stream and keeps the latest snapshot.
func (s *session) read(r io.Reader, watch bool) {
	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := r.Read(chunk)
		if err != nil && !errors.Is(err, serial.ErrTimeout) {
			fmt.Fprintln(os.Stderr, "tunerctl: read:", err)
			return
		}
		buf = append(buf, chunk[:n]...)
		for {
			snap, used, ok := tuner.FindFrame(buf)
			if ok {
				s.update(snap, watch)
			}
			buf = buf[used:]
			if !ok {
				break
			}
		}
	}
}

func (s *session) update(raw []byte, watch bool) {
	snap, err := tuner.ParseSnapshot(raw)
	if err != nil {
		return
	}
	s.mu.Lock()
	prev := s.last
	s.last = snap
	s.frames++
	s.mu.Unlock()

	if !watch {
		return
	}
	for i := 0; i < snap.Widgets(); i++ {
		if prev == nil || prev.WidgetActive(i) != snap.WidgetActive(i) {
			fmt.Printf("widget %d active=%v\n", i, snap.WidgetActive(i))
		}
	}
}

func (s *session) repl(in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(out, "parse:", err)
		} else if len(args) > 0 {
			if args[0] == "quit" || args[0] == "exit" {
				return
			}
			if err := s.exec(args, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
}

func (s *session) exec(args []string, out io.Writer) error {
	switch args[0] {
	case "show":
		s.show(out)
		return nil
	case "help":
		fmt.Fprintln(out, "show | ping | suspend | resume | restart | thresholds <touch> <release> | quit")
		return nil
	case "thresholds":
		if len(args) != 3 {
			return errors.New("usage: thresholds <touch> <release>")
		}
		th, err1 := strconv.ParseUint(args[1], 0, 8)
		rel, err2 := strconv.ParseUint(args[2], 0, 8)
		if err1 != nil || err2 != nil {
			return errors.New("thresholds must be 0..255")
		}
		return s.send(tuner.Command{
			Code:   tuner.CmdWrite,
			Size:   2,
			Offset: tuner.OffTouchTh,
			Data:   [4]byte{byte(th), byte(rel)},
		})
	}
	code, ok := tuner.ParseCode(args[0])
	if !ok || code == tuner.CmdWrite {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return s.send(tuner.Command{Code: code})
}

func (s *session) send(c tuner.Command) error {
	s.mu.Lock()
	s.counter++
	c.Counter = s.counter
	s.mu.Unlock()
	p := c.Encode()
	_, err := s.port.Write(p[:])
	return err
}

func (s *session) show(out io.Writer) {
	s.mu.Lock()
	snap, frames := s.last, s.frames
	s.mu.Unlock()
	if snap == nil {
		fmt.Fprintln(out, "no frame received yet")
		return
	}
	th, rel := snap.Thresholds()
	cntr, code := snap.LastCommand()
	fmt.Fprintf(out, "frames=%d scans=%d flags=%#02x touch=%d release=%d last=%s/%d\n",
		frames, snap.ScanCount(), snap.Flags(), th, rel, code, cntr)
	for i := 0; i < snap.Widgets(); i++ {
		fmt.Fprintf(out, "  widget %d active=%v\n", i, snap.WidgetActive(i))
	}
	for i := 0; i < snap.Slots(); i++ {
		d := snap.Slot(i)
		fmt.Fprintf(out, "  slot %2d filtered=%4d baseline=%4d diff=%4d\n", i, d.Filtered, d.Baseline, d.Diff)
	}
}
