// Package wall runs the pixel wall worker: it drains chat messages one at a
// time, parses each into a pixel command, and applies accepted commands to
// the canvas. Sequential ownership is the entire concurrency discipline:
// exactly one drain goroutine exists, and each accepted command runs its full
// load→blend→persist cycle to completion before the next message is
// dequeued, so no lock is ever needed around the canvas file.
package wall

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/twixelwall/canvas"
	"github.com/onnwee/twixelwall/chat"
	"github.com/onnwee/twixelwall/command"
	"github.com/onnwee/twixelwall/config"
	dbpkg "github.com/onnwee/twixelwall/db"
	"github.com/onnwee/twixelwall/telemetry"
)

// Bot wires the inbound queue, the parser, and the canvas updater together.
type Bot struct {
	cfg     *config.Config
	db      *sql.DB // optional pixel journal; nil disables it
	updater *canvas.Updater
	queue   chan chat.Message
}

// New builds a Bot from config. database may be nil.
func New(cfg *config.Config, database *sql.DB) *Bot {
	telemetry.Init()
	u := canvas.NewUpdater(cfg.CanvasPath, cfg.CanvasWidth, cfg.CanvasHeight, canvas.PNGCodec{})
	u.ScratchDir = cfg.ScratchDir
	return &Bot{
		cfg:     cfg,
		db:      database,
		updater: u,
		queue:   make(chan chat.Message, cfg.QueueSize),
	}
}

// Queue returns the inbound message queue for the chat transport to feed.
func (b *Bot) Queue() chan<- chat.Message { return b.queue }

// QueueDepth reports the current number of queued messages.
func (b *Bot) QueueDepth() int { return len(b.queue) }

// QueueCapacity reports the queue's configured capacity.
func (b *Bot) QueueCapacity() int { return cap(b.queue) }

// Bootstrap ensures the canvas file exists before processing starts.
func (b *Bot) Bootstrap() error { return b.updater.Bootstrap() }

// Run drains the queue until ctx is cancelled or the queue is closed. No
// error from processing a single chat line ever terminates the loop.
func (b *Bot) Run(ctx context.Context) {
	slog.Info("pixel wall running",
		slog.String("canvas", b.cfg.CanvasPath),
		slog.Uint64("width", uint64(b.cfg.CanvasWidth)),
		slog.Uint64("height", uint64(b.cfg.CanvasHeight)))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-b.queue:
			if !ok {
				return
			}
			b.handle(ctx, msg)
			telemetry.SetQueueDepth(len(b.queue))
		}
	}
}

// handle processes one chat line: parse, then one full update cycle. Parse
// failures silently discard the line; bounds violations are a designed
// no-op; update failures are logged and dropped with no retry.
func (b *Bot) handle(ctx context.Context, msg chat.Message) {
	cmd, err := command.Parse(msg.Text, b.cfg.AllowAlpha)
	if err != nil {
		telemetry.CommandsRejected.WithLabelValues(command.Reason(err)).Inc()
		slog.Debug("ignoring chat line", slog.String("login", msg.Login), slog.Any("err", err))
		return
	}
	telemetry.CommandsParsed.Inc()

	cctx := telemetry.WithCorrelation(ctx, uuid.New().String())
	cctx, span := telemetry.StartSpan(cctx, "wall", "wall.apply",
		attribute.Int("pixel.x", int(cmd.X)),
		attribute.Int("pixel.y", int(cmd.Y)),
	)
	defer span.End()

	var applied bool
	var applyErr error
	telemetry.TimeFunc(telemetry.UpdateDuration, func() {
		applied, applyErr = b.updater.Apply(cctx, cmd)
	})
	if applyErr != nil {
		stage := "unknown"
		var ue *canvas.UpdateError
		if errors.As(applyErr, &ue) {
			stage = ue.Stage.String()
		}
		telemetry.UpdatesFailed.WithLabelValues(stage).Inc()
		telemetry.RecordError(span, applyErr)
		telemetry.LoggerWithCorr(cctx).Error("canvas update failed",
			slog.String("stage", stage), slog.Any("err", applyErr))
		return
	}
	if !applied {
		telemetry.OutOfBounds.Inc()
		telemetry.SetSpanSuccess(span)
		telemetry.LoggerWithCorr(cctx).Debug("out-of-bounds pixel dropped",
			slog.Uint64("x", uint64(cmd.X)), slog.Uint64("y", uint64(cmd.Y)))
		return
	}
	telemetry.PixelsApplied.Inc()
	telemetry.SetSpanSuccess(span)
	telemetry.LoggerWithCorr(cctx).Debug("pixel applied",
		slog.String("login", msg.Login),
		slog.Uint64("x", uint64(cmd.X)), slog.Uint64("y", uint64(cmd.Y)))

	if b.db != nil {
		if err := dbpkg.InsertPixelEvent(cctx, b.db, b.cfg.TwitchChannel, msg.Login, cmd); err != nil {
			slog.Warn("pixel journal insert failed", slog.Any("err", err))
		}
	}
}
