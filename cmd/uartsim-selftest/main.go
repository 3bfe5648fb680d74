// Host selftest: the full stack against the simulated target. A command
// manager sits on the async serial driver, the simulator plays the wire,
// and the deferred-task queue is polled deterministically.
package main

import (
	"os"
	"strconv"

	"github.com/Quadra-NSL/mjlib/micro/async"
	"github.com/Quadra-NSL/mjlib/micro/command"
	"github.com/Quadra-NSL/mjlib/micro/events"
	"github.com/Quadra-NSL/mjlib/stm32"
)

var failures int

func check(ok bool, what string) {
	if ok {
		println("[selftest] ok:   " + what)
	} else {
		println("[selftest] FAIL: " + what)
		failures++
	}
}

type rig struct {
	q   *events.Queue
	sim *stm32.Sim
	u   *stm32.AsyncUART
}

func newRig() *rig {
	q := events.NewQueue(256)
	sim := stm32.NewSim(stm32.UART2)
	u := stm32.New(q, sim.Target(), stm32.Options{TX: 1, RX: 2, BaudRate: 115200})
	return &rig{q: q, sim: sim, u: u}
}

// pump drains deferred tasks and completes any transmit transfers the
// driver arms along the way, until the system is quiet.
func (r *rig) pump() {
	for {
		ran := 0
		for r.q.Poll() > 0 {
			ran++
		}
		if r.sim.TxPending() {
			r.sim.CompleteTx()
			continue
		}
		if ran == 0 && r.q.Len() == 0 {
			return
		}
	}
}

func (r *rig) sendLine(line string) {
	r.sim.WireRecv([]byte(line + "\r\n"))
	r.sim.WireIdle()
	r.pump()
}

func testExclusiveGate() {
	held := 0
	maxHeld := 0
	var order []int

	gate := async.NewExclusive(&struct{}{}, 0)
	var releases []async.Release
	for i := 1; i <= 3; i++ {
		i := i
		gate.AsyncStart(func(_ *struct{}, release async.Release) {
			held++
			if held > maxHeld {
				maxHeld = held
			}
			order = append(order, i)
			releases = append(releases, release)
		})
	}
	for len(releases) > 0 {
		release := releases[0]
		releases = releases[1:]
		held--
		release()
	}

	check(maxHeld == 1, "gate admits one operation at a time")
	check(len(order) == 3 && order[0] == 1 && order[1] == 2 && order[2] == 3,
		"gate runs all queued operations")
}

func testCommandLoopback() {
	r := newRig()

	gate := async.NewExclusive[async.WriteStream](r.u, 0)
	mgr := command.NewManager(r.u, gate)
	mgr.Register("ping", func(args []string, resp command.Response) {
		async.WriteAll(resp.Stream, []byte("pong\r\n"), resp.Done)
	})
	mgr.Register("sum", func(args []string, resp command.Response) {
		total := 0
		for _, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil {
				async.WriteAll(resp.Stream, []byte("ERR\r\n"), resp.Done)
				return
			}
			total += v
		}
		async.WriteAll(resp.Stream, []byte("sum "+strconv.Itoa(total)+"\r\n"), resp.Done)
	})
	mgr.Start()
	r.pump()

	r.sendLine("ping")
	check(string(r.sim.TxSent()) == "pong\r\n", "ping round trip")

	r.sendLine("sum 1 2 3")
	check(string(r.sim.TxSent()) == "pong\r\nsum 6\r\n", "sum with arguments")

	r.sendLine("bogus")
	check(string(r.sim.TxSent()) == "pong\r\nsum 6\r\nunknown command\r\n",
		"unknown command reply")
}

func testReceiveFaultRecovery() {
	r := newRig()

	var errs []error
	var data []byte
	buf := make([]byte, 32)

	r.u.AsyncReadSome(buf, func(err error, n int) {
		errs = append(errs, err)
		data = append(data, buf[:n]...)
	})
	r.sim.FaultRx(stm32.USART_SR_ORE)
	r.pump()

	check(len(errs) == 1 && errs[0] != nil, "hardware overrun surfaces as an error")

	r.u.AsyncReadSome(buf, func(err error, n int) {
		errs = append(errs, err)
		data = append(data, buf[:n]...)
	})
	r.sim.WireRecv([]byte("after"))
	r.sim.WireIdle()
	r.pump()

	check(len(errs) == 2 && errs[1] == nil && string(data) == "after",
		"stream recovers after a receive fault")
}

func main() {
	println("[selftest] start")

	testExclusiveGate()
	testCommandLoopback()
	testReceiveFaultRecovery()

	if failures > 0 {
		println("[selftest] FAILED")
		os.Exit(1)
	}
	println("[selftest] PASS")
}
