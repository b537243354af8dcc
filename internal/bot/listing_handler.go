package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/prompt"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

// Callback data prefixes
const (
	callbackView      = "view:"
	callbackQuickEdit = "qe:"
	callbackGenerate  = "gen:"
)

// Actions carried in view: callbacks besides the view names themselves.
const (
	viewActionDownload = "download"
	viewActionReset    = "reset"
)

// Generation options cycled by gen: callbacks.
const (
	genModel    = "model"
	genLocation = "loc"
	genStyle    = "style"
	genRes      = "res"
	genClear    = "clear"
	genGo       = "go"
)

// ListingHandler drives the listing state machine from Telegram input and
// renders its views.
type ListingHandler struct {
	tg         BotAPI
	downloader *ImageDownloader
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(tg BotAPI, downloader *ImageDownloader) *ListingHandler {
	return &ListingHandler{tg: tg, downloader: downloader}
}

// pickImageFile returns the file to download from a photo or image document
// message. For photos Telegram sends several sizes, largest last.
func pickImageFile(message *tgbotapi.Message) (fileID string, fileSize int) {
	if len(message.Photo) > 0 {
		largest := message.Photo[len(message.Photo)-1]
		return largest.FileID, largest.FileSize
	}
	if message.Document != nil {
		return message.Document.FileID, message.Document.FileSize
	}
	return "", 0
}

// HandlePhoto captures a photo and runs the analysis. A valid photo sent
// while a listing is in progress replaces it; a photo that fails to download
// or capture leaves the current listing alone.
func (h *ListingHandler) HandlePhoto(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	fileID, fileSize := pickImageFile(message)
	if fileID == "" {
		return
	}

	session.journal.user("sent photo %s (%d bytes)", fileID, fileSize)

	if int64(fileSize) > listing.MaxImageSize {
		session.replyNotice(listing.ErrImageTooLarge)
		return
	}

	data, err := h.downloader.DownloadFromTelegramFileID(ctx, h.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Error().Err(err).Str("fileID", fileID).Msg("failed to download photo")
		session.journal.failure(fmt.Errorf("download: %w", err))
		session.reply(MsgImageDownloadFailed)
		return
	}

	image, err := listing.Capture(data)
	if err != nil {
		session.replyNotice(err)
		return
	}

	// The current listing is only dropped once the new photo is usable.
	c := session.controller
	if c.Snapshot().Phase == sessionPhaseReady {
		h.clearViewKeyboard(session)
		c.Reset()
	}
	session.journal.begin()
	session.journal.user("photo is %s, %d bytes", image.MIMEType, len(image.Data))

	draft, err := c.SubmitImage(ctx, image)
	if err != nil {
		session.replyNotice(err)
		return
	}

	session.journal.gateway("analysis: category=%s title=%q price=%q", draft.Category, draft.Title, draft.PriceRange)
	h.renderView(session, 0)
}

// HandleText treats free text as input for the active view. Returns true if
// the text was consumed.
func (h *ListingHandler) HandleText(ctx context.Context, session *UserSession, text string) bool {
	state := session.controller.Snapshot()
	if state.Phase != sessionPhaseReady {
		return false
	}

	switch state.View {
	case sessionViewEdit:
		h.ApplyEdit(ctx, session, text)
		return true
	case sessionViewGenerate:
		sel := state.Style
		sel.CustomDetails = text
		if err := session.controller.SetStyle(sel); err != nil {
			session.replyNotice(err)
			return true
		}
		session.reply(MsgCustomDetailSet)
		h.renderView(session, 0)
		return true
	}
	return false
}

// ShowView switches the active view and renders it as a new message.
func (h *ListingHandler) ShowView(session *UserSession, view session.View) {
	if err := session.controller.SelectView(view); err != nil {
		session.replyNotice(err)
		return
	}
	h.renderView(session, 0)
}

// ApplyEdit runs an edit instruction against the current photo and sends the
// result.
func (h *ListingHandler) ApplyEdit(ctx context.Context, session *UserSession, instruction string) {
	session.journal.user("edit: %s", instruction)
	if err := session.controller.SelectView(sessionViewEdit); err != nil {
		session.replyNotice(err)
		return
	}

	image, err := session.controller.ApplyEdit(ctx, instruction)
	if err != nil {
		session.replyNotice(err)
		return
	}

	session.journal.gateway("edit applied, %d bytes", len(image.Data))
	h.sendPhoto(session, image, fmt.Sprintf(MsgEditApplied, instruction))
	h.renderView(session, 0)
}

// Generate produces a styled photo from the stored options and sends it.
func (h *ListingHandler) Generate(ctx context.Context, session *UserSession) {
	sel := session.controller.Style()
	session.journal.user("generate: model=%s location=%s style=%s resolution=%s", sel.Model, sel.Location, sel.Style, sel.Resolution)

	image, err := session.controller.Generate(ctx)
	if err != nil {
		session.replyNotice(err)
		return
	}

	session.journal.gateway("generated %s photo, %d bytes", sel.Resolution, len(image.Data))
	h.sendPhoto(session, image, fmt.Sprintf(MsgGenerateDone, sel.Resolution))
	h.renderView(session, 0)
}

// Reset discards the current listing.
func (h *ListingHandler) Reset(session *UserSession) {
	h.clearViewKeyboard(session)
	session.controller.Reset()
	session.reply(MsgResetDone)
}

// HandleDraftEdit handles "/details <field> <text>".
func (h *ListingHandler) HandleDraftEdit(session *UserSession, args string) {
	field, value, ok := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		session.reply(MsgEditDraftUsage)
		return
	}

	var edit draftEdit
	switch strings.ToLower(field) {
	case "title":
		edit.Title = &value
	case "description":
		edit.Description = &value
	case "price":
		edit.PriceRange = &value
	default:
		session.reply(MsgEditDraftUsage)
		return
	}

	if err := session.controller.EditDraft(edit); err != nil {
		session.replyNotice(err)
		return
	}
	session.journal.user("draft %s: %s", field, value)
	session.reply(MsgDraftUpdated)
	if err := session.controller.SelectView(sessionViewDetails); err == nil {
		h.renderView(session, 0)
	}
}

// HandleViewCallback handles view:<name>, view:download and view:reset.
func (h *ListingHandler) HandleViewCallback(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	action := strings.TrimPrefix(query.Data, callbackView)
	switch action {
	case viewActionDownload:
		h.sendDownload(session)
		return
	case viewActionReset:
		h.Reset(session)
		return
	}

	view, err := parseSessionView(action)
	if err != nil {
		log.Warn().Str("data", query.Data).Msg("unknown view callback")
		return
	}
	if err := session.controller.SelectView(view); err != nil {
		session.replyNotice(err)
		return
	}
	h.renderView(session, callbackMessageID(query))
}

// HandleQuickEditCallback handles qe:<index>.
func (h *ListingHandler) HandleQuickEditCallback(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	idx, err := strconv.Atoi(strings.TrimPrefix(query.Data, callbackQuickEdit))
	if err != nil || idx < 0 || idx >= len(prompt.QuickEdits) {
		log.Warn().Str("data", query.Data).Msg("invalid quick edit callback")
		return
	}
	h.ApplyEdit(ctx, session, prompt.QuickEdits[idx])
}

// HandleGenerateCallback handles gen:<option> cycling and gen:go.
func (h *ListingHandler) HandleGenerateCallback(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	action := strings.TrimPrefix(query.Data, callbackGenerate)
	if action == genGo {
		h.Generate(ctx, session)
		return
	}

	sel := session.controller.Style()
	switch action {
	case genModel:
		sel.Model = nextChoice(prompt.ModelChoices, sel.Model)
	case genLocation:
		sel.Location = nextChoice(prompt.LocationChoices, sel.Location)
	case genStyle:
		sel.Style = nextChoice(prompt.StyleChoices, sel.Style)
	case genRes:
		sel.Resolution = nextChoice(listing.Resolutions, sel.Resolution)
	case genClear:
		sel.CustomDetails = ""
	default:
		log.Warn().Str("data", query.Data).Msg("unknown generate callback")
		return
	}

	if err := session.controller.SetStyle(sel); err != nil {
		session.replyNotice(err)
		return
	}
	h.renderView(session, callbackMessageID(query))
}

// nextChoice returns the option after current, wrapping around.
func nextChoice[T comparable](choices []T, current T) T {
	for i, c := range choices {
		if c == current {
			return choices[(i+1)%len(choices)]
		}
	}
	return choices[0]
}

func callbackMessageID(query *tgbotapi.CallbackQuery) int {
	if query.Message == nil {
		return 0
	}
	return query.Message.MessageID
}

// renderView shows the active view. With editMsgID set the existing message
// is edited in place, otherwise a new message is sent and the previous
// view message loses its keyboard.
func (h *ListingHandler) renderView(session *UserSession, editMsgID int) {
	state := session.controller.Snapshot()
	if state.Phase != sessionPhaseReady || state.Draft == nil {
		session.reply(MsgStartPrompt)
		return
	}

	var text string
	switch state.View {
	case sessionViewEdit:
		text = MsgEditPrompt
	case sessionViewGenerate:
		text = formatGenerateOptions(state.Style)
	default:
		text = formatDraft(state.Draft)
	}
	markup := viewKeyboard(state)

	if editMsgID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(session.userId, editMsgID, text, markup)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, err := h.tg.Request(edit); err != nil {
			log.Debug().Err(err).Msg("failed to edit view message")
		}
		session.viewMsgID = editMsgID
		return
	}

	h.clearViewKeyboard(session)
	msg := tgbotapi.NewMessage(session.userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = markup
	sent := session.replyWithMessage(msg)
	session.viewMsgID = sent.MessageID
}

// clearViewKeyboard removes the inline keyboard from the last view message
// so stale buttons can't be pressed.
func (h *ListingHandler) clearViewKeyboard(session *UserSession) {
	if session.viewMsgID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(
		session.userId,
		session.viewMsgID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	if _, err := h.tg.Request(edit); err != nil {
		log.Debug().Err(err).Msg("failed to clear view keyboard")
	}
	session.viewMsgID = 0
}

func (h *ListingHandler) sendPhoto(session *UserSession, image listing.Payload, caption string) {
	photo := tgbotapi.NewPhoto(session.userId, tgbotapi.FileBytes{
		Name:  DownloadFileName + image.Extension(),
		Bytes: image.Data,
	})
	photo.Caption = caption
	if _, err := h.tg.Send(photo); err != nil {
		session.replyWithError(fmt.Errorf("failed to send photo: %w", err))
	}
}

// sendDownload sends the current photo as a file so it keeps full quality.
func (h *ListingHandler) sendDownload(session *UserSession) {
	state := session.controller.Snapshot()
	if !state.HasImage() {
		session.replyNotice(sessionErrNotReady)
		return
	}
	doc := tgbotapi.NewDocument(session.userId, tgbotapi.FileBytes{
		Name:  DownloadFileName + state.Image.Extension(),
		Bytes: state.Image.Data,
	})
	if _, err := h.tg.Send(doc); err != nil {
		session.replyWithError(fmt.Errorf("failed to send file: %w", err))
	}
}

// formatDraft renders the listing text for the details view.
func formatDraft(d *listing.Draft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", escapeMarkdown(d.Title))
	fmt.Fprintf(&sb, MsgDetailsCategory+"\n", d.Category)
	fmt.Fprintf(&sb, MsgDetailsPrice+"\n\n", escapeMarkdown(d.PriceRange))
	sb.WriteString(escapeMarkdown(d.Description))
	if tags := d.DisplayHashtags(); len(tags) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(escapeMarkdown(strings.Join(tags, " ")))
	}
	if len(d.SuggestedMarketplaces) > 0 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, MsgDetailsMarketplaces, escapeMarkdown(strings.Join(d.SuggestedMarketplaces, ", ")))
	}
	return sb.String()
}

// formatGenerateOptions renders the generate view text.
func formatGenerateOptions(sel prompt.Selection) string {
	lines := []string{
		MsgGenerateTitle,
		fmt.Sprintf(MsgGenerateModel, sel.Model),
		fmt.Sprintf(MsgGenerateLoc, sel.Location),
		fmt.Sprintf(MsgGenerateStyle, sel.Style),
		fmt.Sprintf(MsgGenerateRes, sel.Resolution),
	}
	if custom := strings.TrimSpace(sel.CustomDetails); custom != "" {
		lines = append(lines, fmt.Sprintf(MsgGenerateCustom, escapeMarkdown(custom)))
	}
	lines = append(lines, "", MsgGenerateHint)
	return strings.Join(lines, "\n")
}

func viewTabsRow(active session.View) []tgbotapi.InlineKeyboardButton {
	labels := map[session.View]string{
		sessionViewDetails:  BtnDetails,
		sessionViewEdit:     BtnEdit,
		sessionViewGenerate: BtnGenerate,
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(session.Views))
	for _, v := range session.Views {
		label := labels[v]
		if v == active {
			label = BtnActivePrefix + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackView+v.String()))
	}
	return row
}

// viewKeyboard builds the inline keyboard for the active view.
func viewKeyboard(state session.State) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	switch state.View {
	case sessionViewEdit:
		for i, phrase := range prompt.QuickEdits {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(phrase, callbackQuickEdit+strconv.Itoa(i)),
			))
		}
	case sessionViewGenerate:
		sel := state.Style
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnModelPrefix+sel.Model.String(), callbackGenerate+genModel)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnLocPrefix+sel.Location.String(), callbackGenerate+genLocation)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnStylePrefix+sel.Style.String(), callbackGenerate+genStyle)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnResPrefix+string(sel.Resolution), callbackGenerate+genRes)),
		)
		if strings.TrimSpace(sel.CustomDetails) != "" {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnClearCustom, callbackGenerate+genClear)))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(BtnGenerateGo, callbackGenerate+genGo)))
	default:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnDownload, callbackView+viewActionDownload),
			tgbotapi.NewInlineKeyboardButtonData(BtnReset, callbackView+viewActionReset),
		))
	}

	rows = append(rows, viewTabsRow(state.View))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
