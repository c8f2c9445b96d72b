package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// dispatcher runs every update on its own goroutine so a slow chat never
// holds up the receive loop. Per-chat consistency comes from the locks of the
// chat's session, catalog and generation machine; the machine refuses a
// second generation while one is in flight.
type dispatcher struct {
	log    *slog.Logger
	handle func(ctx context.Context, update tgbotapi.Update)
	wg     sync.WaitGroup
}

func newDispatcher(log *slog.Logger, handle func(ctx context.Context, update tgbotapi.Update)) *dispatcher {
	return &dispatcher{log: log, handle: handle}
}

func (d *dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("update handler panic", "update_id", update.UpdateID, "panic", r)
			}
		}()
		d.handle(ctx, update)
	}()
}

// wait blocks until every dispatched update has been handled.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
