package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/directory"
	"github.com/beingharisali/martchat/internal/messagelog"
	"github.com/beingharisali/martchat/internal/model"
)

// Engine applies live socket events and selection changes to the directory
// store and the message log. It subscribes to the "transport." and "chat."
// bus namespaces and is the only place the two stores are coordinated.
type Engine struct {
	dir    *directory.Store
	log    *messagelog.Log
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates a new sync engine.
func NewEngine(dir *directory.Store, log *messagelog.Log, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		dir:    dir,
		log:    log,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to bus events and begins routing.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	transportCh, unsubTransport := e.bus.Subscribe("transport.", 256)
	chatCh, unsubChat := e.bus.Subscribe("chat.", 64)

	go func() {
		defer unsubTransport()
		defer unsubChat()
		for {
			select {
			case evt := <-transportCh:
				e.handleTransport(ctx, evt)
			case evt := <-chatCh:
				e.handleChat(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleTransport(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.TransportMessage:
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			return
		}
		e.routeMessage(ctx, msg)
	case bus.TransportOnlineUsers:
		ids, ok := evt.Payload.([]string)
		if !ok {
			return
		}
		e.dir.SetOnline(ids)
	case bus.TransportConnected:
		e.logger.Info("socket connected")
		// The list may have gone stale while offline.
		e.dir.SignalRefresh()
	case bus.TransportDisconnected:
		e.logger.Warn("socket connection lost")
	}
}

func (e *Engine) handleChat(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.ChatSelected:
		chat, ok := evt.Payload.(model.Chat)
		if !ok {
			return
		}
		// Target switches synchronously, in selection order; the fetch runs
		// in the background and is discarded if superseded.
		e.log.SetTarget(chat.ID)
		go e.openChat(ctx, chat.ID)
	case bus.ChatRemoved:
		chatID, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if e.log.ChatID() == chatID {
			e.log.Reset()
		}
	}
}

// openChat loads the history for a newly selected chat and settles it OPEN.
// A failed fetch still settles: the chat stays open with an empty log and
// the failure is surfaced on the bus, recoverable by reselecting.
func (e *Engine) openChat(ctx context.Context, chatID string) {
	err := e.log.Load(ctx, chatID)
	if err != nil {
		e.logger.Error("load messages failed", zap.String("chat_id", chatID), zap.Error(err))
	}
	e.dir.MarkOpen(chatID)
	if err == nil && e.log.ChatID() == chatID {
		e.dir.MarkRead(ctx, chatID)
	}
}

// routeMessage applies one live delivery: messages for the open chat are
// appended (deduplicated) and the chat marked read; anything else only
// refreshes the list so its latest-message preview catches up.
func (e *Engine) routeMessage(ctx context.Context, msg *model.Message) {
	sel := e.dir.Selected()
	if sel != nil && msg.ChatID() == sel.ID {
		if e.log.Append(*msg) {
			e.dir.TouchLatest(*msg)
			e.dir.MarkRead(ctx, sel.ID)
		}
		return
	}
	e.dir.SignalRefresh()
}
