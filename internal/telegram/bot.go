package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TiendiaBot/internal/billing"
	"github.com/digkill/TiendiaBot/internal/catalog"
	"github.com/digkill/TiendiaBot/internal/config"
	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/tiendia"
)

var errNotImage = errors.New("file is not an image")

// TokenStore is a session token store that can also enumerate its chats.
type TokenStore interface {
	session.TokenStore
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// Archiver keeps a copy of downloaded images. Optional.
type Archiver interface {
	Save(ctx context.Context, chatID int64, filename string, data []byte, contentType string) (string, error)
}

type Bot struct {
	cfg        config.Config
	api        *tgbotapi.BotAPI
	log        *slog.Logger
	client     *tiendia.Client
	tokens     TokenStore
	billing    *billing.Service
	archive    Archiver
	state      *StateManager
	dispatcher *dispatcher
	httpClient *http.Client
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, client *tiendia.Client, tokens TokenStore, archive Archiver) *Bot {
	b := &Bot{
		cfg:        cfg,
		api:        api,
		log:        log,
		client:     client,
		tokens:     tokens,
		billing:    billing.NewService(client, cfg.ReviewEmail, cfg.PaymentReturnURI, log),
		archive:    archive,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	b.state = NewStateManager(b.newChat)
	b.dispatcher = newDispatcher(log, b.handleUpdate)
	return b
}

// newChat wires the state of a chat and restores its session from the
// persisted token.
func (b *Bot) newChat(ctx context.Context, chatID int64) *Chat {
	log := b.log.With("chat_id", chatID)
	sess := session.New(chatID, b.client, b.tokens, b.log)
	store := catalog.NewStore(b.client, sess, log)
	chat := &Chat{
		ID:         chatID,
		Session:    sess,
		Catalog:    store,
		Generation: generation.NewMachine(b.client, sess, store, log),
		country:    b.cfg.DefaultCountry,
	}
	sess.Subscribe(func(snap session.Snapshot) {
		if snap.User == nil && !snap.Loading {
			store.Clear()
			_ = chat.Generation.Reset()
			chat.clearComparison()
		}
	})
	sess.CheckAuthStatus(ctx)
	return chat
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				b.dispatcher.wait()
				return nil
			}
			b.dispatcher.dispatch(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.dispatcher.wait()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chat := b.state.Get(ctx, msg.Chat.ID)

	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handleProductPhoto(ctx, chat, msg)
		return
	}

	if msg.IsCommand() {
		chat.SetStep(StepIdle)
		b.handleCommand(ctx, chat, msg)
		return
	}

	switch chat.Step() {
	case StepAwaitingEmail:
		chat.setPendingEmail(strings.TrimSpace(msg.Text))
		b.sendText(chat.ID, "Ahora envía tu contraseña. Borraré el mensaje apenas la lea.")
	case StepAwaitingPassword:
		b.handlePassword(ctx, chat, msg)
	default:
		b.sendText(chat.ID, "Envía una foto de tu producto o usa /products para ver tus productos.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, chat *Chat, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chat, msg)
	case "login":
		chat.SetStep(StepAwaitingEmail)
		b.sendText(chat.ID, "Ingresa tu email. Si no tienes cuenta, la crearemos.")
	case "logout":
		chat.Session.Logout(ctx)
		b.sendText(chat.ID, "Sesión cerrada.")
	case "balance":
		b.handleBalance(ctx, chat)
	case "products":
		b.handleProducts(ctx, chat)
	case "gallery":
		b.handleGallery(ctx, chat)
	case "product":
		id, err := parseIDArg(args, 0)
		if err != nil {
			b.sendText(chat.ID, "Formato: /product <id>")
			return
		}
		b.showProduct(ctx, chat, id)
	case "generate":
		b.handleGenerateCommand(ctx, chat, args)
	case "personalize":
		b.handlePersonalizeCommand(ctx, chat, args)
	case "regenerate":
		b.handleRegenerate(ctx, chat)
	case "download":
		b.handleDownload(ctx, chat)
	case "delete_product":
		id, err := parseIDArg(args, 0)
		if err != nil {
			b.sendText(chat.ID, "Formato: /delete_product <id>")
			return
		}
		b.confirmDelete(chat.ID, "producto", cbDeleteProduct, id)
	case "delete_image":
		id, err := parseIDArg(args, 0)
		if err != nil {
			b.sendText(chat.ID, "Formato: /delete_image <id>")
			return
		}
		b.confirmDelete(chat.ID, "imagen", cbDeleteImage, id)
	case "buy":
		if len(args) > 0 {
			chat.SetCountry(strings.ToUpper(args[0]))
		}
		b.handleBuy(ctx, chat)
	case "notifications":
		b.handleNotifications(ctx, chat)
	case "help":
		b.sendText(chat.ID, helpText)
	default:
		b.sendText(chat.ID, "Comando desconocido. Usa /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		b.answerCallback(cb.ID, "")
		return
	}
	chat := b.state.Get(ctx, cb.Message.Chat.ID)
	action, id, err := parseCallback(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, "Opción desconocida")
		return
	}
	b.answerCallback(cb.ID, "")

	switch action.kind {
	case cbProduct:
		b.showProduct(ctx, chat, id)
	case cbGenerate:
		desc, err := generation.ParseMode(action.mode)
		if err != nil {
			b.sendText(chat.ID, "Modo de generación desconocido.")
			return
		}
		b.generateForProduct(ctx, chat, id, desc)
	case cbRegenerate:
		b.handleRegenerate(ctx, chat)
	case cbDownload:
		b.handleDownload(ctx, chat)
	case cbReset:
		b.handleReset(chat)
	case cbSliderLeft:
		b.nudgeSlider(chat, -1)
	case cbSliderRight:
		b.nudgeSlider(chat, 1)
	case cbDeleteProduct:
		b.deleteProduct(ctx, chat, id)
	case cbDeleteImage:
		b.deleteImage(ctx, chat, id)
	case cbBuy:
		b.checkout(ctx, chat, int(id))
	case cbCancel:
		b.sendText(chat.ID, "Cancelado.")
	}
}

func (b *Bot) handlePassword(ctx context.Context, chat *Chat, msg *tgbotapi.Message) {
	email := chat.takePendingEmail()
	password := msg.Text
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chat.ID, msg.MessageID)); err != nil {
		b.log.Warn("delete password message", "chat_id", chat.ID, "err", err)
	}

	if err := chat.Session.LoginOrRegister(ctx, email, password); err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}
	user := chat.Session.User()
	b.sendText(chat.ID, fmt.Sprintf("¡Hola %s! Tienes %d créditos.\n\n%s", displayName(user), user.Credits, helpText))
}

// handleProductPhoto is the add-product flow: the photo becomes a new product
// and its first generated image.
func (b *Bot) handleProductPhoto(ctx context.Context, chat *Chat, msg *tgbotapi.Message) {
	if !chat.Session.Authenticated() {
		b.sendText(chat.ID, userMessage(session.ErrNotAuthenticated))
		return
	}

	data, contentType, err := b.downloadMessageImage(ctx, msg)
	if err != nil {
		if errors.Is(err, errNotImage) {
			b.sendText(chat.ID, "Eso no es una imagen. Envía una foto de tu producto.")
			return
		}
		b.log.Error("download product photo", "chat_id", chat.ID, "err", err)
		b.sendText(chat.ID, "No se pudo leer la foto, intenta de nuevo.")
		return
	}

	b.sendText(chat.ID, generatingText)
	res, err := chat.Generation.GenerateNewProduct(ctx, data, contentType)
	if err != nil {
		b.sendText(chat.ID, userMessage(err))
		return
	}
	b.showComparison(ctx, chat, res)
}

func (b *Bot) downloadMessageImage(ctx context.Context, msg *tgbotapi.Message) ([]byte, string, error) {
	var fileID string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil:
		if mt := strings.ToLower(msg.Document.MimeType); mt != "" && !strings.HasPrefix(mt, "image/") {
			return nil, "", errNotImage
		}
		fileID = msg.Document.FileID
	default:
		return nil, "", errNotImage
	}
	return b.downloadFile(ctx, fileID)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("file path empty")
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file body: %w", err)
	}
	ct, err := normalizeImageContentType(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, "", err
	}
	return body, ct, nil
}

// HandlePush applies a push notification addressed to chatID and tells the
// user about credit changes.
func (b *Bot) HandlePush(ctx context.Context, chatID int64, data models.PushData) error {
	chat, err := b.chatForPush(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.Session.Authenticated() {
		return session.ErrNotAuthenticated
	}
	before := chat.Session.Credits()
	chat.Session.ApplyPush(ctx, data)
	if after := chat.Session.Credits(); after != before {
		b.sendText(chatID, fmt.Sprintf("Tus créditos se actualizaron. Saldo actual: %d.", after))
	}
	return nil
}

// chatForPush returns the chat a push is addressed to. A chat not seen since
// startup is only built when a token is stored for it.
func (b *Bot) chatForPush(ctx context.Context, chatID int64) (*Chat, error) {
	if chat, ok := b.state.Lookup(chatID); ok {
		return chat, nil
	}
	token, err := b.tokens.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return nil, session.ErrNotAuthenticated
	}
	return b.state.Get(ctx, chatID), nil
}

// Broadcast sends text to every chat with a stored token.
func (b *Bot) Broadcast(ctx context.Context, text string) (int, int, error) {
	ids, err := b.tokens.ListChatIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list chats: %w", err)
	}
	sent := 0
	for _, id := range ids {
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.log.Error("send broadcast", "chat_id", id, "err", err)
			continue
		}
		sent++
	}
	return sent, len(ids), nil
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send keyboard", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func parseIDArg(args []string, idx int) (int64, error) {
	if idx >= len(args) {
		return 0, fmt.Errorf("missing id")
	}
	return strconv.ParseInt(strings.TrimPrefix(args[idx], "#"), 10, 64)
}

func displayName(u *models.User) string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

func normalizeImageContentType(headerCT string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(headerCT))
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if !strings.HasPrefix(ct, "image/") && len(data) > 0 {
		ct = http.DetectContentType(data)
		if idx := strings.Index(ct, ";"); idx > 0 {
			ct = ct[:idx]
		}
	}

	switch ct {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	case "image/webp":
		return "image/webp", nil
	default:
		return "", errNotImage
	}
}
