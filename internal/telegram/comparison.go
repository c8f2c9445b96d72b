package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/slider"
)

const (
	comparisonWidth = 720
	// nudgeStep is the share of the width one arrow press moves the boundary.
	nudgeStep = 0.1
)

// showComparison sends the before/after view of a finished generation and
// starts the attract sweep.
func (b *Bot) showComparison(ctx context.Context, chat *Chat, res *generation.Result) {
	after := res.Generated
	before := after
	if res.OriginalURL != "" {
		data, _, err := b.client.FetchImage(ctx, res.OriginalURL)
		if err != nil {
			b.log.Warn("fetch original image", "chat_id", chat.ID, "err", err)
		} else {
			before = data
		}
	}

	s := slider.New(comparisonWidth)
	s.Attract()
	frame, err := slider.Render(s, before, after)
	if err != nil {
		b.log.Error("render comparison", "chat_id", chat.ID, "err", err)
		frame = after
	}

	photo := tgbotapi.NewPhoto(chat.ID, tgbotapi.FileBytes{Name: "comparacion.png", Bytes: frame})
	photo.Caption = "Antes / Después: " + res.ProductName
	photo.ReplyMarkup = comparisonKeyboard()
	sent, err := b.api.Send(photo)
	if err != nil {
		b.log.Error("send comparison", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, "La imagen está lista. Usa /download para descargarla.")
		return
	}

	chat.mu.Lock()
	chat.slider = s
	chat.before, chat.after = before, after
	chat.compareMsgID = sent.MessageID
	chat.attractSeq++
	seq := chat.attractSeq
	chat.mu.Unlock()

	go b.playAttract(ctx, chat, seq)
}

type attractFrame struct {
	wait time.Duration
	pos  float64
}

// attractFrames lists the keyframes of a running sweep at which the boundary
// moves, each with its delay after the previous frame. Keyframes that leave
// the boundary in place are folded into the next one.
func attractFrames(s *slider.Slider) []attractFrame {
	sim := *s
	last := sim.Position()
	var (
		frames  []attractFrame
		pending time.Duration
	)
	for sim.Phase() == slider.Animating {
		step := sim.UntilNextKeyframe()
		if step <= 0 {
			break
		}
		sim.Advance(step)
		pending += step
		if pos := sim.Position(); pos != last {
			frames = append(frames, attractFrame{wait: pending, pos: pos})
			last, pending = pos, 0
		}
	}
	return frames
}

// attractingLocked reports whether the sweep started as seq is still running.
func (c *Chat) attractingLocked(seq int) bool {
	return c.attractSeq == seq && c.slider != nil && c.slider.Phase() == slider.Animating
}

// playAttract edits the comparison message at every keyframe of the attract
// sweep where the boundary moves. It stops when the sweep ends, the user takes
// over the slider or the comparison is replaced.
func (b *Bot) playAttract(ctx context.Context, chat *Chat, seq int) {
	chat.mu.Lock()
	if !chat.attractingLocked(seq) {
		chat.mu.Unlock()
		return
	}
	frames := attractFrames(chat.slider)
	chat.mu.Unlock()

	for _, f := range frames {
		timer := time.NewTimer(f.wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		chat.mu.Lock()
		if !chat.attractingLocked(seq) {
			chat.mu.Unlock()
			return
		}
		chat.slider.Advance(f.wait)
		frame, err := slider.Render(chat.slider, chat.before, chat.after)
		msgID := chat.compareMsgID
		chat.mu.Unlock()

		if err != nil {
			b.log.Warn("render attract frame", "chat_id", chat.ID, "err", err)
			return
		}
		b.editComparison(chat.ID, msgID, frame)
	}
}

// nudgeSlider moves the boundary one step left (dir < 0) or right. It
// interrupts the attract sweep the same way a touch does.
func (b *Bot) nudgeSlider(chat *Chat, dir int) {
	chat.mu.Lock()
	if chat.slider == nil || chat.compareMsgID == 0 {
		chat.mu.Unlock()
		b.sendText(chat.ID, userMessage(generation.ErrNoResult))
		return
	}
	chat.slider.Nudge(float64(dir) * nudgeStep * chat.slider.Width())
	frame, err := slider.Render(chat.slider, chat.before, chat.after)
	msgID := chat.compareMsgID
	chat.mu.Unlock()

	if err != nil {
		b.log.Warn("render nudged slider", "chat_id", chat.ID, "err", err)
		return
	}
	b.editComparison(chat.ID, msgID, frame)
}

func (b *Bot) editComparison(chatID int64, msgID int, frame []byte) {
	keyboard := comparisonKeyboard()
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:      chatID,
			MessageID:   msgID,
			ReplyMarkup: &keyboard,
		},
		Media: tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{Name: "comparacion.png", Bytes: frame}),
	}
	if _, err := b.api.Request(edit); err != nil {
		b.log.Warn("edit comparison", "chat_id", chatID, "message_id", msgID, "err", err)
	}
}
