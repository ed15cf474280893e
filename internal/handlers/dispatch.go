package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sdko-org/filebed-relay/internal/admin"
	"github.com/sdko-org/filebed-relay/internal/format"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/models"
	"github.com/sdko-org/filebed-relay/internal/relay"
	"github.com/sdko-org/filebed-relay/internal/telegram"
	"github.com/sirupsen/logrus"
)

// Documents are reclassified into richer categories when their MIME type or
// extension gives them away; rules carried over from the deployed bot.
var (
	videoExtPattern = regexp.MustCompile(`(?i)\.(mp4|avi|mov|wmv|flv|mkv|webm|m4v|3gp|mpeg|mpg|ts|rmvb|rm|asf|amv|mts|m2ts|vob|divx|ogm|ogv)$`)
	audioExtPattern = regexp.MustCompile(`(?i)\.(mp3|wav|ogg|flac|aac|m4a|wma|opus|mid|midi|ape|ra|amr|au|voc|ac3|dsf|dsd|dts|ast|aiff|aifc|spx|gsm|wv|tta|mpc|tak)$`)
	animExtPattern  = regexp.MustCompile(`(?i)\.(gif|webp|apng|flif|avif)$`)
)

func (h *Handler) dispatch(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	userID := chatID
	username := ""
	if msg.From != nil {
		userID = msg.From.ID
		username = msg.From.Username
	}

	if h.ledger.IsBanned(ctx, userID) && !h.console.IsAdmin(userID) {
		h.reply(ctx, chatID, "🚫 You are banned from using this bot.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		if err := h.ledger.UpsertDirectory(ctx, userID, username); err != nil {
			h.log.WithError(err).Warn("Directory upsert failed")
		}
		h.handleCommand(ctx, chatID, userID, text)
		return
	}

	att, ok := classify(msg)
	if !ok {
		h.reply(ctx, chatID, "⚠️ Unrecognized message type. Send a photo, video, audio file or document.")
		return
	}

	h.relay.Handle(ctx, att, relay.ChatContext{ChatID: chatID, UserID: userID})
}

// classify maps an inbound message to a relay attachment and its file-type
// category.
func classify(msg *telegram.Message) (relay.Attachment, bool) {
	now := time.Now().UnixMilli()
	doc := msg.Document

	switch {
	case len(msg.Photo) > 0:
		// The Bot API lists photo renditions smallest first.
		photo := msg.Photo[len(msg.Photo)-1]
		return relay.Attachment{
			Kind:     models.TypeImage,
			FileID:   photo.FileID,
			FileName: fmt.Sprintf("image_%d.jpg", now),
			MIMEType: "image/jpeg",
			Caption:  msg.Caption,
		}, true

	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = fmt.Sprintf("video_%d.mp4", now)
		}
		return relay.Attachment{
			Kind:     models.TypeVideo,
			FileID:   msg.Video.FileID,
			FileName: name,
			MIMEType: orDefault(msg.Video.MIMEType, "video/mp4"),
			Caption:  msg.Caption,
		}, true

	case doc != nil && (strings.HasPrefix(doc.MIMEType, "video/") || videoExtPattern.MatchString(doc.FileName)):
		return documentAttachment(msg, models.TypeVideo, "video/mp4", now), true

	case msg.Audio != nil:
		name := firstNonEmpty(msg.Audio.Title, msg.Audio.FileName, fmt.Sprintf("audio_%d.mp3", now))
		return relay.Attachment{
			Kind:     models.TypeAudio,
			FileID:   msg.Audio.FileID,
			FileName: name,
			MIMEType: orDefault(msg.Audio.MIMEType, "audio/mpeg"),
			Caption:  msg.Caption,
		}, true

	case doc != nil && (strings.HasPrefix(doc.MIMEType, "audio/") || audioExtPattern.MatchString(doc.FileName)):
		return documentAttachment(msg, models.TypeAudio, "audio/mpeg", now), true

	case msg.Animation != nil:
		name := msg.Animation.FileName
		if name == "" {
			name = fmt.Sprintf("animation_%d.gif", now)
		}
		return relay.Attachment{
			Kind:     models.TypeAnimation,
			FileID:   msg.Animation.FileID,
			FileName: name,
			MIMEType: orDefault(msg.Animation.MIMEType, "image/gif"),
			Caption:  msg.Caption,
		}, true

	case doc != nil && (strings.Contains(doc.MIMEType, "animation") || animExtPattern.MatchString(doc.FileName)):
		return documentAttachment(msg, models.TypeAnimation, "image/gif", now), true

	case doc != nil:
		return documentAttachment(msg, models.TypeDocument, "application/octet-stream", now), true
	}

	return relay.Attachment{}, false
}

func documentAttachment(msg *telegram.Message, kind, defaultMIME string, now int64) relay.Attachment {
	name := msg.Document.FileName
	if name == "" {
		name = fmt.Sprintf("file_%d", now)
	}
	return relay.Attachment{
		Kind:     kind,
		FileID:   msg.Document.FileID,
		FileName: name,
		MIMEType: orDefault(msg.Document.MIMEType, defaultMIME),
		Caption:  msg.Caption,
	}
}

const (
	startText = "🤖 Bot is ready!\n\nSend a file and it is uploaded automatically. Photos, videos, audio, documents and several hundred other formats are supported, up to the configured size limit."
	helpText  = "📖 How to use this bot:\n\n1. Send /start once to enable the bot.\n2. Send a photo, video, audio file or document; it is uploaded automatically.\n3. /stats shows your usage, /history lists your uploads.\n4. /history supports a page number, a type filter (image, video, audio, animation, document) and free-text search.\n5. /delete <id> removes one history entry.\n6. /formats lists the supported format categories."
	formats   = "📋 Supported format categories:\n\n🖼️ Images: jpg, png, gif, webp, svg, bmp, tiff, heic, raw...\n🎬 Video: mp4, avi, mov, mkv, webm, flv, rmvb, m4v...\n🎵 Audio: mp3, wav, ogg, flac, aac, m4a, wma, opus...\n📝 Documents: pdf, doc(x), xls(x), ppt(x), txt, md, epub...\n🗜️ Archives: zip, rar, 7z, tar, gz, xz, bz2...\n⚙️ Executables: exe, msi, apk, ipa, deb, rpm, dmg...\n🌐 Web/code: html, css, js, ts, py, java, php, go...\n🎨 3D/design: obj, fbx, blend, stl, psd, ai, sketch...\n📊 Data/science: mat, hdf5, parquet, csv, json, xml..."
)

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, text string) {
	fields := strings.Fields(text)
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/start":
		h.reply(ctx, chatID, startText)
	case "/help":
		h.reply(ctx, chatID, helpText)
	case "/formats":
		h.reply(ctx, chatID, formats)
	case "/stats":
		h.reply(ctx, chatID, formatUserStats(h.ledger.GetStats(ctx, userID)))
	case "/history":
		h.handleHistory(ctx, chatID, userID, args)
	case "/delete":
		h.handleDelete(ctx, chatID, userID, args)
	case "/ban":
		h.adminOnly(ctx, chatID, userID, func() { h.handleBan(ctx, chatID, userID, args) })
	case "/unban":
		h.adminOnly(ctx, chatID, userID, func() { h.handleUnban(ctx, chatID, args) })
	case "/banned":
		h.adminOnly(ctx, chatID, userID, func() { h.handleBanned(ctx, chatID) })
	case "/users":
		h.adminOnly(ctx, chatID, userID, func() { h.handleUsers(ctx, chatID, args) })
	case "/stat":
		h.adminOnly(ctx, chatID, userID, func() { h.handleGlobalStats(ctx, chatID) })
	case "/broadcast":
		h.adminOnly(ctx, chatID, userID, func() { h.handleBroadcast(ctx, chatID, text) })
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Unknown command: %s. Use /start or /help.", command))
	}
}

func (h *Handler) adminOnly(ctx context.Context, chatID, userID int64, fn func()) {
	if !h.console.IsAdmin(userID) {
		h.reply(ctx, chatID, "⛔ This command is restricted to admins.")
		return
	}
	fn()
}

var historyTypes = map[string]bool{
	models.TypeImage:     true,
	models.TypeVideo:     true,
	models.TypeAudio:     true,
	models.TypeAnimation: true,
	models.TypeDocument:  true,
	models.TypeOther:     true,
}

// handleHistory parses "/history [page] [category] [desc:<text>] [terms...]"
// into a filter; leftover terms become the free-text search.
func (h *Handler) handleHistory(ctx context.Context, chatID, userID int64, args []string) {
	filter := ledger.HistoryFilter{Page: 1}
	var terms []string
	for _, arg := range args {
		switch {
		case isNumber(arg):
			filter.Page, _ = strconv.Atoi(arg)
		case historyTypes[strings.ToLower(arg)]:
			filter.FileType = strings.ToLower(arg)
		case strings.HasPrefix(strings.ToLower(arg), "desc:"):
			filter.DescriptionText = arg[len("desc:"):]
		default:
			terms = append(terms, arg)
		}
	}
	filter.FreeText = strings.Join(terms, " ")

	page := h.ledger.QueryHistory(ctx, userID, filter)
	if len(page.Entries) == 0 {
		h.reply(ctx, chatID, "📭 No uploads found.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗂 Your uploads (page %d/%d)\n", page.Page, page.TotalPages)
	for _, entry := range page.Entries {
		fmt.Fprintf(&b, "\n📄 %s (%s, %s)\n🔗 %s\n🆔 %s\n",
			entry.FileName, entry.FileType, format.Size(entry.FileSize), entry.URL, entry.ID)
		if entry.Description != "" {
			fmt.Fprintf(&b, "📝 %s\n", entry.Description)
		}
	}
	h.reply(ctx, chatID, b.String())
}

func (h *Handler) handleDelete(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) != 1 {
		h.reply(ctx, chatID, "Usage: /delete <entry id> (IDs are listed by /history)")
		return
	}
	found, err := h.ledger.DeleteHistoryEntry(ctx, userID, args[0])
	if err != nil {
		h.log.WithError(err).Warn("History delete failed")
		h.reply(ctx, chatID, "❌ Could not delete the entry, please try again later.")
		return
	}
	if !found {
		h.reply(ctx, chatID, "❓ No history entry with that ID.")
		return
	}
	h.reply(ctx, chatID, "🗑 Entry deleted.")
}

func (h *Handler) handleBan(ctx context.Context, chatID, adminID int64, args []string) {
	if len(args) < 1 {
		h.reply(ctx, chatID, "Usage: /ban <user id> [reason]")
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "Usage: /ban <user id> [reason]")
		return
	}
	reason := strings.Join(args[1:], " ")
	if err := h.console.Ban(ctx, target, reason, adminID); err != nil {
		h.log.WithError(err).Warn("Ban failed")
		h.reply(ctx, chatID, "❌ Ban failed, please try again later.")
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("🚫 User %d banned.", target))
}

func (h *Handler) handleUnban(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		h.reply(ctx, chatID, "Usage: /unban <user id>")
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "Usage: /unban <user id>")
		return
	}
	if err := h.console.Unban(ctx, target); err != nil {
		h.log.WithError(err).Warn("Unban failed")
		h.reply(ctx, chatID, "❌ Unban failed, please try again later.")
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("✅ User %d unbanned.", target))
}

func (h *Handler) handleBanned(ctx context.Context, chatID int64) {
	banned, err := h.console.ListBanned(ctx)
	if err != nil {
		h.log.WithError(err).Warn("Ban list read failed")
		h.reply(ctx, chatID, "❌ Could not read the ban list.")
		return
	}
	if len(banned) == 0 {
		h.reply(ctx, chatID, "✅ Nobody is banned.")
		return
	}
	var b strings.Builder
	b.WriteString("🚫 Banned users:\n")
	for _, u := range banned {
		fmt.Fprintf(&b, "\n• %d — %s (since %s)", u.UserID, u.Reason, u.BannedAt.Format("2006-01-02"))
	}
	h.reply(ctx, chatID, b.String())
}

func (h *Handler) handleUsers(ctx context.Context, chatID int64, args []string) {
	pageNum := 1
	if len(args) > 0 && isNumber(args[0]) {
		pageNum, _ = strconv.Atoi(args[0])
	}
	page, err := h.console.ListUsers(ctx, pageNum)
	if err != nil {
		h.log.WithError(err).Warn("User listing failed")
		h.reply(ctx, chatID, "❌ Could not read the user directory.")
		return
	}
	h.reply(ctx, chatID, admin.FormatUsersPage(page))
}

func (h *Handler) handleGlobalStats(ctx context.Context, chatID int64) {
	totals, err := h.console.Stats(ctx)
	if err != nil {
		h.log.WithError(err).Warn("Aggregate stats failed")
		h.reply(ctx, chatID, "❌ Could not compute service stats.")
		return
	}
	h.reply(ctx, chatID, admin.FormatTotals(totals))
}

func (h *Handler) handleBroadcast(ctx context.Context, chatID int64, text string) {
	body := strings.TrimSpace(strings.TrimPrefix(text, "/broadcast"))
	if body == "" {
		h.reply(ctx, chatID, "Usage: /broadcast <message>")
		return
	}
	sent, total, err := h.console.Broadcast(ctx, body)
	if err != nil {
		h.log.WithError(err).Warn("Broadcast failed")
		h.reply(ctx, chatID, "❌ Broadcast failed.")
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("📣 Broadcast delivered to %d/%d users.", sent, total))
}

func formatUserStats(stats *models.UserStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Your stats\n\n📤 Uploads: %d (✅ %d / ❌ %d)\n💾 Total size: %s\n",
		stats.TotalUploads, stats.SuccessfulUploads, stats.FailedUploads, format.Size(stats.TotalSize))

	if len(stats.FileTypes) > 0 {
		b.WriteString("\nBy type:\n")
		for _, t := range []string{models.TypeImage, models.TypeVideo, models.TypeAudio, models.TypeAnimation, models.TypeDocument, models.TypeOther} {
			if count := stats.FileTypes[t]; count > 0 {
				fmt.Fprintf(&b, "• %s: %d\n", t, count)
			}
		}
	}

	today := time.Now().Format("2006-01-02")
	if bucket, ok := stats.DailyData[today]; ok {
		fmt.Fprintf(&b, "\nToday: %d uploads, %s", bucket.Uploads, format.Size(bucket.Size))
	}
	return b.String()
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.tg.SendMessage(ctx, chatID, text); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"chat_id": chatID}).Warn("Reply failed")
	}
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
