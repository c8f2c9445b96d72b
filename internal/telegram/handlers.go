package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TiendiaBot/internal/billing"
	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/session"
)

const maxListedItems = 30

func (b *Bot) handleStart(ctx context.Context, chat *Chat, msg *tgbotapi.Message) {
	chat.Session.RefreshUser(ctx)
	user := chat.Session.User()
	if user == nil {
		name := ""
		if msg.From != nil {
			name = msg.From.FirstName
		}
		b.sendText(chat.ID, fmt.Sprintf("¡Hola %s! Transforma las fotos de tus productos con IA.\n\nUsa /login para ingresar o crear tu cuenta.", name))
		return
	}
	b.sendText(chat.ID, fmt.Sprintf("¡Hola %s! Tienes %d créditos.\n\n%s", displayName(user), user.Credits, helpText))
}

func (b *Bot) handleBalance(ctx context.Context, chat *Chat) {
	chat.Session.RefreshUser(ctx)
	user := chat.Session.User()
	if user == nil {
		b.sendText(chat.ID, userMessage(session.ErrNotAuthenticated))
		return
	}
	b.sendText(chat.ID, fmt.Sprintf("Créditos disponibles: %d (%d imágenes).", user.Credits, user.Credits/models.GenerationCost))
}

func (b *Bot) handleProducts(ctx context.Context, chat *Chat) {
	products, err := chat.Catalog.GetProducts(ctx)
	if err != nil {
		b.log.Warn("get products", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	if len(products) == 0 {
		b.sendText(chat.ID, "Todavía no tienes productos. Envía una foto para crear el primero.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, p := range products {
		if i == maxListedItems {
			break
		}
		label := fmt.Sprintf("#%d %s", p.ID, p.Name)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbProduct, p.ID, "")),
		))
	}
	b.sendWithKeyboard(chat.ID, fmt.Sprintf("Tus productos (%d):", len(products)), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showProduct(ctx context.Context, chat *Chat, id int64) {
	product, ok := chat.Catalog.Product(id)
	if !ok {
		if _, err := chat.Catalog.GetProducts(ctx); err != nil {
			b.sendText(chat.ID, userMessage(err))
			return
		}
		if product, ok = chat.Catalog.Product(id); !ok {
			b.sendText(chat.ID, "Producto no encontrado.")
			return
		}
	}

	caption := fmt.Sprintf("%s\n\nElige cómo generar la imagen o usa /personalize %d con tus opciones.", product.Name, product.ID)
	if src := product.SourceImage(); src != "" {
		photo := tgbotapi.NewPhoto(chat.ID, tgbotapi.FileURL(src))
		photo.Caption = caption
		photo.ReplyMarkup = productKeyboard(product.ID)
		_, err := b.api.Send(photo)
		if err == nil {
			return
		}
		b.log.Warn("send product photo", "chat_id", chat.ID, "err", err)
	}
	b.sendWithKeyboard(chat.ID, caption, productKeyboard(product.ID))
}

func (b *Bot) handleGallery(ctx context.Context, chat *Chat) {
	images, err := chat.Catalog.GetUserImages(ctx)
	if err != nil {
		b.log.Warn("get user images", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	if len(images) == 0 {
		b.sendText(chat.ID, "Tu galería está vacía.")
		return
	}

	var sb strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	fmt.Fprintf(&sb, "Tus imágenes (%d):\n", len(images))
	for i, img := range images {
		if i == maxListedItems {
			break
		}
		fmt.Fprintf(&sb, "\n#%d %s\n%s\n", img.ID, img.ProductName, img.URL)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d", img.ID), callbackData(cbDeleteImage, img.ID, "")),
		))
	}
	b.sendWithKeyboard(chat.ID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleGenerateCommand(ctx context.Context, chat *Chat, args []string) {
	id, err := parseIDArg(args, 0)
	if err != nil {
		b.sendText(chat.ID, "Formato: /generate <id> [front|back|kid|baby]")
		return
	}
	mode := ""
	if len(args) > 1 {
		mode = args[1]
	}
	desc, err := generation.ParseMode(mode)
	if err != nil {
		b.sendText(chat.ID, "Modo desconocido. Usa front, back, kid o baby.")
		return
	}
	b.generateForProduct(ctx, chat, id, desc)
}

func (b *Bot) handlePersonalizeCommand(ctx context.Context, chat *Chat, args []string) {
	id, err := parseIDArg(args, 0)
	if err != nil {
		b.sendText(chat.ID, "Formato: /personalize <id> gender=male|female age=youth|adult|senior skin=light|medium|dark body=slim|athletic|curvy")
		return
	}
	desc, err := generation.ParsePersonalized(args[1:])
	if err != nil {
		b.sendText(chat.ID, "Opciones inválidas. Ejemplo: /personalize "+strconv.FormatInt(id, 10)+" gender=female age=adult")
		return
	}
	b.generateForProduct(ctx, chat, id, desc)
}

func (b *Bot) generateForProduct(ctx context.Context, chat *Chat, id int64, desc generation.Descriptor) {
	product, ok := chat.Catalog.Product(id)
	if !ok {
		if _, err := chat.Catalog.GetProducts(ctx); err != nil {
			b.sendText(chat.ID, userMessage(err))
			return
		}
		if product, ok = chat.Catalog.Product(id); !ok {
			b.sendText(chat.ID, "Producto no encontrado.")
			return
		}
	}

	if !chat.Session.User().CanAfford() {
		b.sendText(chat.ID, userMessage(generation.ErrInsufficientCredits))
		return
	}
	b.sendText(chat.ID, generatingText)
	res, err := chat.Generation.Generate(ctx, product, desc)
	if err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.showComparison(ctx, chat, res)
}

func (b *Bot) handleRegenerate(ctx context.Context, chat *Chat) {
	if !chat.Session.User().CanAfford() {
		b.sendText(chat.ID, userMessage(generation.ErrInsufficientCredits))
		return
	}
	b.sendText(chat.ID, generatingText)
	res, err := chat.Generation.Regenerate(ctx)
	if err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.showComparison(ctx, chat, res)
}

func (b *Bot) handleReset(chat *Chat) {
	if err := chat.Generation.Reset(); err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}
	chat.clearComparison()
	b.sendText(chat.ID, "Listo. Envía otra foto o elige un producto con /products.")
}

func (b *Bot) handleDownload(ctx context.Context, chat *Chat) {
	data, filename, err := chat.Generation.Download()
	if err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}

	doc := tgbotapi.NewDocument(chat.ID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = "¡Guardada!"
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send download", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, "No se pudo guardar la imagen.")
		return
	}

	if b.archive != nil {
		ct := "image/png"
		if res := chat.Generation.Result(); res != nil && res.ContentType != "" {
			ct = res.ContentType
		}
		if key, err := b.archive.Save(ctx, chat.ID, filename, data, ct); err != nil {
			b.log.Warn("archive download", "chat_id", chat.ID, "err", err)
		} else {
			b.log.Info("download archived", "chat_id", chat.ID, "key", key)
		}
	}
}

func (b *Bot) confirmDelete(chatID int64, what string, kind callbackKind, id int64) {
	b.sendWithKeyboard(chatID, fmt.Sprintf("¿Eliminar %s #%d? Esta acción no se puede deshacer.", what, id), confirmKeyboard(kind, id))
}

func (b *Bot) deleteProduct(ctx context.Context, chat *Chat, id int64) {
	if err := chat.Catalog.DeleteProduct(ctx, id); err != nil {
		b.log.Warn("delete product", "chat_id", chat.ID, "product_id", id, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.sendText(chat.ID, fmt.Sprintf("Producto #%d eliminado.", id))
}

func (b *Bot) deleteImage(ctx context.Context, chat *Chat, id int64) {
	if err := chat.Catalog.DeleteImage(ctx, id); err != nil {
		b.log.Warn("delete image", "chat_id", chat.ID, "image_id", id, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.sendText(chat.ID, fmt.Sprintf("Imagen #%d eliminada.", id))
}

func (b *Bot) handleBuy(ctx context.Context, chat *Chat) {
	chat.Session.RefreshUser(ctx)
	user := chat.Session.User()
	if user == nil {
		b.sendText(chat.ID, "Debes iniciar sesión para comprar créditos. Usa /login.")
		return
	}

	country := b.billing.EffectiveCountry(user, chat.Country())
	offers := billing.Offers(country)

	var sb strings.Builder
	if b.billing.IsReviewAccount(user) {
		sb.WriteString("Prices in USD (Revision Mode)\n")
	} else {
		fmt.Fprintf(&sb, "Precios en %s · Pago con %s\n", offers[0].Currency, billing.ProviderName(country))
	}
	fmt.Fprintf(&sb, "Créditos actuales: %d\n", user.Credits)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range offers {
		line := fmt.Sprintf("\n%d imágenes (%d créditos): %s", o.Images, o.Credits, o.FormattedPrice())
		if o.Discount > 0 {
			line += fmt.Sprintf(" -%d%%", o.Discount)
		}
		if o.Disabled {
			line += " (no disponible)"
		} else {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Comprar %d imágenes", o.Images), callbackData(cbBuy, int64(o.ID), "")),
			))
		}
		sb.WriteString(line)
	}
	b.sendWithKeyboard(chat.ID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) checkout(ctx context.Context, chat *Chat, packID int) {
	res, err := b.billing.Checkout(ctx, chat.Session, chat.Country(), packID)
	if err != nil {
		b.log.Warn("checkout", "chat_id", chat.ID, "pack_id", packID, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	if res.URL == "" {
		b.sendText(chat.ID, fmt.Sprintf("Se acreditaron %d créditos. Saldo: %d.", res.CreditsAdded, chat.Session.Credits()))
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("Pagar con "+res.Provider, res.URL),
	))
	b.sendWithKeyboard(chat.ID, "Completa el pago en el enlace. Te avisaremos cuando se acrediten los créditos (activa /notifications).", keyboard)
}

// handleNotifications registers this chat as the push target of the account.
func (b *Bot) handleNotifications(ctx context.Context, chat *Chat) {
	pushToken := strconv.FormatInt(chat.ID, 10)
	if err := chat.Session.EnablePushNotifications(ctx, pushToken); err != nil {
		b.log.Warn("enable notifications", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.sendText(chat.ID, "¡Notificaciones activadas! Te avisaremos cuando se acrediten tus compras.")
}
