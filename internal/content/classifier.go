package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupported marks payload kinds the relay refuses to classify, such as
// animated stickers. Callers answer with a canned reply instead of failing.
var ErrUnsupported = errors.New("unsupported content")

// Fixed extensions for kinds where Telegram supplies no file name.
const (
	gifExtension     = ".mp4"
	voiceExtension   = ".ogg"
	stickerExtension = ".webp"
	photoExtension   = ".jpeg"
	videoExtension   = ".mp4"
	audioExtension   = ".mp3"
)

// FileResolver exchanges a channel-internal file handle for the file bytes.
type FileResolver interface {
	ResolveFile(ctx context.Context, botToken, fileID string) (data []byte, mimeType string, err error)
}

// Uploader stores raw bytes under a key and returns the canonical URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error)
}

// Classifier normalizes the heterogeneous Telegram payload shapes into a
// canonical content list, storing each file-backed item durably.
type Classifier struct {
	files  FileResolver
	store  Uploader
	logger *slog.Logger
}

func NewClassifier(log *slog.Logger, files FileResolver, store Uploader) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		files:  files,
		store:  store,
		logger: log.With(slog.String("component", "classifier")),
	}
}

// upload pairs a pending item with the file handle still to be resolved.
type upload struct {
	item   Item
	fileID string
}

// Classify maps an inbound message to (text, content). Only one payload kind
// should be set per Telegram message; when several appear the precedence is
// contact > location > document > gif > video > voice > audio > sticker > photo.
func (c *Classifier) Classify(ctx context.Context, botToken, roomID string, msg *tgbotapi.Message) (string, []Item, error) {
	if msg == nil {
		return "", nil, nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	var pending []upload
	switch {
	case msg.Contact != nil:
		return text, []Item{{
			Category:    CategoryContact,
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
		}}, nil
	case msg.Location != nil:
		return text, []Item{{
			Category:  CategoryLocation,
			Longitude: msg.Location.Longitude,
			Latitude:  msg.Location.Latitude,
		}}, nil
	case msg.Document != nil:
		name := strings.TrimSpace(msg.Document.FileName)
		if name == "" {
			name = msg.Document.FileUniqueID
		}
		pending = append(pending, upload{
			fileID: msg.Document.FileID,
			item: Item{
				Category:  CategoryDocument,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  msg.Document.MimeType,
				FileSize:  int64(msg.Document.FileSize),
			},
		})
	case msg.Animation != nil:
		name := strings.TrimSpace(msg.Animation.FileName)
		if name == "" {
			name = msg.Animation.FileUniqueID + gifExtension
		}
		pending = append(pending, upload{
			fileID: msg.Animation.FileID,
			item: Item{
				Category:  CategoryGIF,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  msg.Animation.MimeType,
				FileSize:  int64(msg.Animation.FileSize),
				Width:     msg.Animation.Width,
				Height:    msg.Animation.Height,
			},
		})
	case msg.Video != nil:
		name := strings.TrimSpace(msg.Video.FileName)
		if name == "" {
			name = msg.Video.FileUniqueID + videoExtension
		}
		pending = append(pending, upload{
			fileID: msg.Video.FileID,
			item: Item{
				Category:  CategoryVideo,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  msg.Video.MimeType,
				FileSize:  int64(msg.Video.FileSize),
				Width:     msg.Video.Width,
				Height:    msg.Video.Height,
			},
		})
	case msg.Voice != nil:
		name := msg.Voice.FileUniqueID + voiceExtension
		pending = append(pending, upload{
			fileID: msg.Voice.FileID,
			item: Item{
				Category:  CategoryAudio,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  msg.Voice.MimeType,
				FileSize:  int64(msg.Voice.FileSize),
			},
		})
	case msg.Audio != nil:
		name := strings.TrimSpace(msg.Audio.FileName)
		if name == "" {
			name = msg.Audio.FileUniqueID + audioExtension
		}
		pending = append(pending, upload{
			fileID: msg.Audio.FileID,
			item: Item{
				Category:  CategoryAudio,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  msg.Audio.MimeType,
				FileSize:  int64(msg.Audio.FileSize),
			},
		})
	case msg.Sticker != nil:
		// Animated stickers never produce a partial item.
		if msg.Sticker.IsAnimated {
			return "", nil, fmt.Errorf("animated sticker: %w", ErrUnsupported)
		}
		name := msg.Sticker.FileUniqueID + stickerExtension
		pending = append(pending, upload{
			fileID: msg.Sticker.FileID,
			item: Item{
				Category:  CategorySticker,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  "image/webp",
				FileSize:  int64(msg.Sticker.FileSize),
				Width:     msg.Sticker.Width,
				Height:    msg.Sticker.Height,
			},
		})
	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		name := photo.FileUniqueID + photoExtension
		pending = append(pending, upload{
			fileID: photo.FileID,
			item: Item{
				Category:  CategoryImage,
				FileName:  name,
				Extension: extensionOf(name),
				MimeType:  "image/jpeg",
				FileSize:  int64(photo.FileSize),
				Width:     photo.Width,
				Height:    photo.Height,
			},
		})
	default:
		return text, nil, nil
	}

	items, err := c.uploadAll(ctx, botToken, roomID, pending)
	if err != nil {
		return "", nil, err
	}
	return text, items, nil
}

// uploadAll resolves and stores every pending file concurrently, joining
// before returning so the content list is always complete.
func (c *Classifier) uploadAll(ctx context.Context, botToken, roomID string, pending []upload) ([]Item, error) {
	items := make([]Item, len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, p := range pending {
		group.Go(func() error {
			data, mimeType, err := c.files.ResolveFile(groupCtx, botToken, p.fileID)
			if err != nil {
				return fmt.Errorf("resolve file %s: %w", p.fileID, err)
			}
			if p.item.MimeType == "" {
				p.item.MimeType = mimeType
			}
			if p.item.FileSize == 0 {
				p.item.FileSize = int64(len(data))
			}
			key := fmt.Sprintf("chatRooms/%s/%s", roomID, p.item.FileName)
			url, err := c.store.Upload(groupCtx, key, data, p.item.MimeType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			p.item.URL = url
			items[i] = p.item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// pickPhoto selects the highest-resolution variant Telegram offers.
func pickPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best
}

func extensionOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return name[idx+1:]
	}
	return ""
}
