package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sweeney/cadence-clicker/internal/cadence"
	"github.com/sweeney/cadence-clicker/internal/inject"
	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// Clock abstracts time for the engine loop.
type Clock interface {
	Now() time.Time
	// Sleep is a coarse wait used while idle or paused.
	Sleep(d time.Duration)
	// SleepUntil is a precise wait used for hold times and tick deadlines.
	SleepUntil(t time.Time)
}

const (
	pausedSleep   = 50 * time.Millisecond
	idleSleep     = 10 * time.Millisecond
	maxTickWait   = 50 * time.Millisecond
	defaultRate   = 12.0
	defaultJitter = 2.0
)

// Assist outputs and their release delay ranges after the primary release.
const (
	blockHitCode = keycode.BtnRight
	wTapCode     = keycode.KeyS

	blockHitReleaseMin = 10 * time.Millisecond
	blockHitReleaseMax = 30 * time.Millisecond
	wTapReleaseMin     = 10 * time.Millisecond
	wTapReleaseMax     = 20 * time.Millisecond
)

// Engine drives two cadence channels and emits clicks through a Sink.
type Engine struct {
	sink  inject.Sink
	clock Clock
	rng   *rand.Rand

	// Status, if set, receives a snapshot after every command batch and
	// every emitted click.
	Status StatusSink
}

// New creates an engine. rng is used for every random draw in the loop.
func New(sink inject.Sink, clock Clock, rng *rand.Rand) *Engine {
	return &Engine{sink: sink, clock: clock, rng: rng}
}

type assist struct {
	enabled bool
	chance  float64 // probability in [0,1]
}

func (a assist) roll(rng *rand.Rand) bool {
	return a.enabled && rng.Float64() < a.chance
}

type channel struct {
	id       ChannelID
	active   bool
	target   keycode.Code
	nextTick time.Time
	cadence  *cadence.Channel
	jitter   bool
	presses  int64
}

func (c *channel) reset(now time.Time) {
	c.nextTick = now
	c.cadence.Reset(now)
}

func (c *channel) status() ChannelStatus {
	return ChannelStatus{
		Active:   c.active,
		Mood:     c.cadence.Mood(),
		BaseRate: c.cadence.BaseRate,
		Target:   c.target,
		Presses:  c.presses,
	}
}

// state is everything the loop mutates. It is created by Run and never
// escapes the engine goroutine.
type state struct {
	mode         Mode
	paused       bool
	primary      channel
	secondary    channel
	jitter       *cadence.Jitter
	jitterAmount float64
	humanization cadence.Humanization

	wTap     assist
	blockHit assist

	holdingWTap     bool
	holdingBlockHit bool

	presses   int64
	lastPress time.Time
}

func (e *Engine) newState() *state {
	return &state{
		mode: ModePointer,
		primary: channel{
			id:      Primary,
			target:  keycode.BtnLeft,
			cadence: cadence.NewChannel(defaultRate, e.rng),
			jitter:  true,
		},
		secondary: channel{
			id:      Secondary,
			target:  keycode.BtnRight,
			cadence: cadence.NewChannel(defaultRate, e.rng),
		},
		jitter:       cadence.NewJitter(e.rng),
		jitterAmount: defaultJitter,
		humanization: cadence.Legit,
	}
}

func (st *state) channel(id ChannelID) *channel {
	if id == Secondary {
		return &st.secondary
	}
	return &st.primary
}

// Run executes the engine loop until a Stop command arrives, ctx is done, or
// the sink fails. Stop and ctx are only observed between iterations. On every
// exit path all outputs the engine could be holding are released and the sink
// is closed.
func (e *Engine) Run(ctx context.Context, commands <-chan Command, configs <-chan ConfigDelta) (err error) {
	st := e.newState()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine fault: %v", r)
		}
		if err != nil {
			log.Printf("engine: %v", err)
		}
		e.cleanup(st)
	}()

	for {
		e.drainConfigs(st, configs)

		stop, err := e.drainCommands(st, commands)
		if err != nil {
			return err
		}
		if stop {
			log.Printf("engine: stop requested")
			return nil
		}
		if ctx.Err() != nil {
			log.Printf("engine: context done: %v", ctx.Err())
			return nil
		}

		if st.paused {
			e.clock.Sleep(pausedSleep)
			continue
		}
		if !st.primary.active && !st.secondary.active {
			e.clock.Sleep(idleSleep)
			continue
		}

		processed := false

		now := e.clock.Now()
		if st.primary.active && !now.Before(st.primary.nextTick) {
			if err := e.firePrimary(st, now); err != nil {
				return err
			}
			processed = true
		}

		now = e.clock.Now()
		if st.mode == ModePointer && st.secondary.active && !now.Before(st.secondary.nextTick) {
			if err := e.fireSecondary(st, now); err != nil {
				return err
			}
			processed = true
		}

		if processed {
			e.report(st)
			continue
		}
		e.waitForTick(st)
	}
}

func (e *Engine) drainConfigs(st *state, configs <-chan ConfigDelta) {
	for {
		select {
		case d, ok := <-configs:
			if !ok {
				return
			}
			e.applyConfig(st, d)
		default:
			return
		}
	}
}

func (e *Engine) applyConfig(st *state, d ConfigDelta) {
	d = d.Sanitize()

	if d.Mode != nil {
		if st.mode != *d.Mode {
			log.Printf("engine: mode %s -> %s", st.mode, *d.Mode)
		}
		st.mode = *d.Mode
		if st.mode == ModePointer {
			st.primary.target = keycode.BtnLeft
			st.secondary.target = keycode.BtnRight
		}
	}
	if d.RatePrimary != nil {
		st.primary.cadence.BaseRate = *d.RatePrimary
	}
	if d.RateSecondary != nil {
		st.secondary.cadence.BaseRate = *d.RateSecondary
	}
	if d.JitterStrength != nil {
		st.jitterAmount = *d.JitterStrength
	}
	if d.Humanization != nil {
		st.humanization = *d.Humanization
	}
	if d.OutputCode != nil && st.mode == ModeKey {
		st.primary.target = *d.OutputCode
	}
	if d.AssistWTapEnabled != nil {
		st.wTap.enabled = *d.AssistWTapEnabled
	}
	if d.AssistWTapChance != nil {
		st.wTap.chance = *d.AssistWTapChance / 100
	}
	if d.AssistBlockHitEnabled != nil {
		st.blockHit.enabled = *d.AssistBlockHitEnabled
	}
	if d.AssistBlockHitChance != nil {
		st.blockHit.chance = *d.AssistBlockHitChance / 100
	}
	e.report(st)
}

// drainCommands applies all pending commands in arrival order. It reports
// stop=true as soon as a Stop is seen; later commands are not applied.
func (e *Engine) drainCommands(st *state, commands <-chan Command) (stop bool, err error) {
	changed := false
	defer func() {
		if changed {
			e.report(st)
		}
	}()
	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				return true, nil
			}
			if cmd.Kind == CmdStop {
				return true, nil
			}
			if err := e.handleCommand(st, cmd); err != nil {
				return false, err
			}
			changed = true
		default:
			return false, nil
		}
	}
}

func (e *Engine) handleCommand(st *state, cmd Command) error {
	switch cmd.Kind {
	case CmdPause:
		st.paused = true
	case CmdResume:
		st.paused = false
	case CmdEnable:
		ch := st.channel(cmd.Channel)
		if ch.active {
			return nil
		}
		ch.active = true
		ch.reset(e.clock.Now())
		if ch.id == Primary {
			st.jitter.Reset()
		}
		log.Printf("engine: %s channel enabled", ch.id)
	case CmdDisable:
		ch := st.channel(cmd.Channel)
		if ch.id == Primary {
			if err := e.releaseAssists(st); err != nil {
				return err
			}
		}
		if ch.active {
			log.Printf("engine: %s channel disabled", ch.id)
		}
		ch.active = false
	}
	return nil
}

// releaseAssists force-releases any assist output still marked held.
func (e *Engine) releaseAssists(st *state) error {
	if st.holdingWTap {
		if err := e.tap(wTapCode, false); err != nil {
			return err
		}
		st.holdingWTap = false
	}
	if st.holdingBlockHit {
		if err := e.tap(blockHitCode, false); err != nil {
			return err
		}
		st.holdingBlockHit = false
	}
	return nil
}

func (e *Engine) firePrimary(st *state, now time.Time) error {
	ch := &st.primary
	pointer := st.mode == ModePointer

	if pointer && ch.jitter {
		if dx, dy, ok := st.jitter.Next(st.jitterAmount, st.humanization); ok {
			if err := e.sink.MoveRelative(dx, dy); err != nil {
				return fmt.Errorf("jitter: %w", err)
			}
			if ch.target == keycode.None {
				if err := e.sink.Flush(); err != nil {
					return fmt.Errorf("jitter: %w", err)
				}
			}
		}
	}

	doBlockHit := pointer && st.blockHit.roll(e.rng)
	doWTap := pointer && st.wTap.roll(e.rng)

	if ch.target != keycode.None {
		if err := e.tap(ch.target, true); err != nil {
			return err
		}
	}
	if doBlockHit {
		st.holdingBlockHit = true
		if err := e.tap(blockHitCode, true); err != nil {
			return err
		}
	}
	if doWTap {
		st.holdingWTap = true
		if err := e.tap(wTapCode, true); err != nil {
			return err
		}
	}

	hold := cadence.HoldDuration(e.rng)
	ch.nextTick = now.Add(ch.cadence.NextDelay(now))
	e.countPress(st, ch, now)
	e.clock.SleepUntil(now.Add(hold))

	if ch.target != keycode.None {
		if err := e.tap(ch.target, false); err != nil {
			return err
		}
	}
	if doBlockHit {
		e.clock.Sleep(cadence.ReleaseDelay(e.rng, blockHitReleaseMin, blockHitReleaseMax))
		if err := e.tap(blockHitCode, false); err != nil {
			return err
		}
		st.holdingBlockHit = false
	}
	if doWTap {
		e.clock.Sleep(cadence.ReleaseDelay(e.rng, wTapReleaseMin, wTapReleaseMax))
		if err := e.tap(wTapCode, false); err != nil {
			return err
		}
		st.holdingWTap = false
	}
	return nil
}

func (e *Engine) fireSecondary(st *state, now time.Time) error {
	ch := &st.secondary
	if err := e.tap(ch.target, true); err != nil {
		return err
	}
	hold := cadence.HoldDuration(e.rng)
	ch.nextTick = now.Add(ch.cadence.NextDelay(now))
	e.countPress(st, ch, now)
	e.clock.SleepUntil(now.Add(hold))
	return e.tap(ch.target, false)
}

func (e *Engine) countPress(st *state, ch *channel, now time.Time) {
	ch.presses++
	st.presses++
	st.lastPress = now
}

// tap writes one press or release followed by a sync.
func (e *Engine) tap(code keycode.Code, down bool) error {
	var err error
	if down {
		err = e.sink.Press(code)
	} else {
		err = e.sink.Release(code)
	}
	if err == nil {
		err = e.sink.Flush()
	}
	if err != nil {
		return fmt.Errorf("emit code=%d down=%v: %w", code, down, err)
	}
	return nil
}

// waitForTick sleeps until the earliest active deadline, capped so new
// commands and config are picked up promptly.
func (e *Engine) waitForTick(st *state) {
	now := e.clock.Now()
	deadline := now.Add(maxTickWait)
	if st.primary.active && st.primary.nextTick.Before(deadline) {
		deadline = st.primary.nextTick
	}
	if st.mode == ModePointer && st.secondary.active && st.secondary.nextTick.Before(deadline) {
		deadline = st.secondary.nextTick
	}
	if deadline.After(now) {
		e.clock.SleepUntil(deadline)
	}
}

func (e *Engine) report(st *state) {
	if e.Status == nil {
		return
	}
	e.Status.UpdateEngine(Status{
		Mode:      st.mode,
		Paused:    st.paused,
		Primary:   st.primary.status(),
		Secondary: st.secondary.status(),
		Presses:   st.presses,
		LastPress: st.lastPress,
	})
}

// cleanup releases every output the engine could conceivably be holding,
// regardless of tracked state, then closes the sink. Best effort: failures
// are logged and swallowed since the engine is exiting anyway.
func (e *Engine) cleanup(st *state) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: cleanup fault: %v", r)
		}
	}()

	codes := []keycode.Code{
		keycode.BtnLeft, keycode.BtnRight, keycode.KeyW, keycode.KeyS,
		st.primary.target, st.secondary.target,
	}
	failed := 0
	for _, c := range codes {
		if c == keycode.None {
			continue
		}
		if err := e.sink.Release(c); err != nil {
			failed++
		}
	}
	if err := e.sink.Flush(); err != nil {
		failed++
	}
	if err := e.sink.Close(); err != nil {
		failed++
	}
	if failed > 0 {
		log.Printf("engine: cleanup: %d sink operations failed", failed)
	}

	st.primary.active = false
	st.secondary.active = false
	st.holdingWTap = false
	st.holdingBlockHit = false
	e.report(st)
}
