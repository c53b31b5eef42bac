package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/domain/vitals"
	"github.com/vitals/vitals/internal/platform/pubsub"
)

const (
	DefaultCount          = 10
	DefaultInterval       = 2 * time.Second
	DefaultPublishTimeout = 30 * time.Second
	DefaultStopGrace      = 2 * time.Second
)

// Options controls a single simulator run.
//
// A publish in flight when ctx is cancelled gets StopGrace to be
// acknowledged before it is abandoned. PublishTimeout bounds every publish.
type Options struct {
	Count          int
	Continuous     bool
	Interval       time.Duration
	PublishTimeout time.Duration
	StopGrace      time.Duration
}

// Simulator publishes batches of synthetic readings for randomly chosen
// patients. It is not safe for concurrent use.
type Simulator struct {
	pub    pubsub.Publisher
	gen    *vitals.Generator
	rng    *rand.Rand
	target string
	out    io.Writer
	logger zerolog.Logger
}

// New creates a Simulator. target names the destination in the run banner;
// out receives the human-readable progress lines.
func New(pub pubsub.Publisher, gen *vitals.Generator, rng *rand.Rand, target string, out io.Writer, logger zerolog.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if out == nil {
		out = io.Discard
	}
	return &Simulator{
		pub:    pub,
		gen:    gen,
		rng:    rng,
		target: target,
		out:    out,
		logger: logger,
	}
}

// Run publishes readings until Count is reached, or until ctx is cancelled in
// continuous mode. Cancellation is a clean stop; sent counts the readings the
// transport acknowledged.
func (s *Simulator) Run(ctx context.Context, opts Options) (int, error) {
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}

	fmt.Fprintf(s.out, "Publishing to: %s\n", s.target)
	fmt.Fprintln(s.out, strings.Repeat("-", 50))

	roster := vitals.Roster()
	sent := 0
	for opts.Continuous || sent < opts.Count {
		if ctx.Err() != nil {
			return sent, nil
		}

		patient := roster[s.rng.Intn(len(roster))]
		fmt.Fprintf(s.out, "\nSending vitals for %s:\n", patient)

		for _, reading := range s.gen.BuildBatch(patient) {
			if ctx.Err() != nil {
				return sent, nil
			}
			if err := s.publish(ctx, reading, opts); err != nil {
				if ctx.Err() != nil {
					return sent, nil
				}
				return sent, err
			}
			sent++
			if !opts.Continuous && sent >= opts.Count {
				return sent, nil
			}
		}

		if !sleep(ctx, opts.Interval) {
			return sent, nil
		}
	}
	return sent, nil
}

func (s *Simulator) publish(ctx context.Context, r vitals.Reading, opts Options) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.PublishTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		time.AfterFunc(opts.StopGrace, cancel)
	})
	defer stop()

	id, err := s.pub.Publish(pctx, data)
	if err != nil {
		return fmt.Errorf("publishing %s for %s: %w", r.Type, r.PatientID, err)
	}

	fmt.Fprintf(s.out, "  %s (msg: %s)\n", r, id)
	s.logger.Debug().
		Str("patient_id", r.PatientID).
		Str("type", string(r.Type)).
		Float64("value", r.Value).
		Str("unit", r.Unit).
		Str("message_id", id).
		Msg("reading published")
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
