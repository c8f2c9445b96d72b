package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type callbackKind int

const (
	cbProduct callbackKind = iota + 1
	cbGenerate
	cbRegenerate
	cbDownload
	cbReset
	cbSliderLeft
	cbSliderRight
	cbDeleteProduct
	cbDeleteImage
	cbBuy
	cbCancel
)

var callbackPrefixes = map[callbackKind]string{
	cbProduct:       "p",
	cbGenerate:      "g",
	cbRegenerate:    "regen",
	cbDownload:      "dl",
	cbReset:         "reset",
	cbSliderLeft:    "sl-",
	cbSliderRight:   "sl+",
	cbDeleteProduct: "dp",
	cbDeleteImage:   "di",
	cbBuy:           "buy",
	cbCancel:        "cancel",
}

// withID lists the callbacks that carry an id after the prefix.
var withID = map[callbackKind]bool{
	cbProduct:       true,
	cbGenerate:      true,
	cbDeleteProduct: true,
	cbDeleteImage:   true,
	cbBuy:           true,
}

type callbackAction struct {
	kind callbackKind
	mode string
}

// callbackData encodes an action as "<prefix>[:<id>[:<mode>]]". Telegram caps
// callback data at 64 bytes, which this stays far below.
func callbackData(kind callbackKind, id int64, mode string) string {
	prefix := callbackPrefixes[kind]
	if !withID[kind] {
		return prefix
	}
	data := prefix + ":" + strconv.FormatInt(id, 10)
	if mode != "" {
		data += ":" + mode
	}
	return data
}

func parseCallback(data string) (callbackAction, int64, error) {
	parts := strings.Split(data, ":")
	for kind, prefix := range callbackPrefixes {
		if parts[0] != prefix {
			continue
		}
		if !withID[kind] {
			if len(parts) != 1 {
				return callbackAction{}, 0, fmt.Errorf("unexpected callback payload %q", data)
			}
			return callbackAction{kind: kind}, 0, nil
		}
		if len(parts) < 2 || len(parts) > 3 {
			return callbackAction{}, 0, fmt.Errorf("malformed callback %q", data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return callbackAction{}, 0, fmt.Errorf("malformed callback id %q: %w", data, err)
		}
		action := callbackAction{kind: kind}
		if len(parts) == 3 {
			action.mode = parts[2]
		}
		return action, id, nil
	}
	return callbackAction{}, 0, fmt.Errorf("unknown callback %q", data)
}

func comparisonKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀", callbackData(cbSliderLeft, 0, "")),
			tgbotapi.NewInlineKeyboardButtonData("▶", callbackData(cbSliderRight, 0, "")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Regenerar", callbackData(cbRegenerate, 0, "")),
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Descargar", callbackData(cbDownload, 0, "")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ Generar nueva", callbackData(cbReset, 0, "")),
		),
	)
}

func productKeyboard(productID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Frente", callbackData(cbGenerate, productID, "front")),
			tgbotapi.NewInlineKeyboardButtonData("Espalda", callbackData(cbGenerate, productID, "back")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Niño", callbackData(cbGenerate, productID, "kid")),
			tgbotapi.NewInlineKeyboardButtonData("Bebé", callbackData(cbGenerate, productID, "baby")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Eliminar producto", callbackData(cbDeleteProduct, productID, "")),
		),
	)
}

func confirmKeyboard(kind callbackKind, id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sí, eliminar", callbackData(kind, id, "")),
			tgbotapi.NewInlineKeyboardButtonData("Cancelar", callbackData(cbCancel, 0, "")),
		),
	)
}
