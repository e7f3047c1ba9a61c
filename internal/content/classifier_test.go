package content_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bridgelet/bridgelet/internal/content"
)

type fakeResolver struct {
	data map[string][]byte
	mime string
}

func (f *fakeResolver) ResolveFile(ctx context.Context, botToken, fileID string) ([]byte, string, error) {
	data, ok := f.data[fileID]
	if !ok {
		return nil, "", errors.New("unknown file id")
	}
	return data, f.mime, nil
}

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://store.local/" + key, nil
}

func newClassifier(resolver *fakeResolver, store *fakeUploader) *content.Classifier {
	return content.NewClassifier(nil, resolver, store)
}

func TestClassify_ContactNeedsNoUpload(t *testing.T) {
	t.Parallel()
	store := &fakeUploader{}
	classifier := newClassifier(&fakeResolver{}, store)

	text, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Contact: &tgbotapi.Contact{PhoneNumber: "+123", FirstName: "Ada", LastName: "L"},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
	if len(items) != 1 || items[0].Category != content.CategoryContact {
		t.Fatalf("items = %+v, want one contact", items)
	}
	if items[0].PhoneNumber != "+123" || items[0].FirstName != "Ada" {
		t.Fatalf("contact fields = %+v", items[0])
	}
	if len(store.keys) != 0 {
		t.Fatalf("contact should not upload, got keys %v", store.keys)
	}
}

func TestClassify_LocationNeedsNoUpload(t *testing.T) {
	t.Parallel()
	store := &fakeUploader{}
	classifier := newClassifier(&fakeResolver{}, store)

	_, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Location: &tgbotapi.Location{Longitude: 1.5, Latitude: -2.5},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(items) != 1 || items[0].Category != content.CategoryLocation {
		t.Fatalf("items = %+v, want one location", items)
	}
	if items[0].Longitude != 1.5 || items[0].Latitude != -2.5 {
		t.Fatalf("location fields = %+v", items[0])
	}
	if len(store.keys) != 0 {
		t.Fatalf("location should not upload, got keys %v", store.keys)
	}
}

func TestClassify_PhotoPicksHighestResolution(t *testing.T) {
	t.Parallel()
	resolver := &fakeResolver{data: map[string][]byte{"big": []byte("jpeg")}, mime: "image/jpeg"}
	store := &fakeUploader{}
	classifier := newClassifier(resolver, store)

	text, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Caption: "look",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "u-small", Width: 90, Height: 90},
			{FileID: "big", FileUniqueID: "u-big", Width: 800, Height: 600},
			{FileID: "mid", FileUniqueID: "u-mid", Width: 320, Height: 240},
		},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if text != "look" {
		t.Fatalf("text = %q, want caption", text)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v, want one image", items)
	}
	item := items[0]
	if item.Category != content.CategoryImage {
		t.Fatalf("Category = %q, want image", item.Category)
	}
	if item.FileName != "u-big.jpeg" {
		t.Fatalf("FileName = %q, want u-big.jpeg", item.FileName)
	}
	if item.URL != "https://store.local/chatRooms/room-1/u-big.jpeg" {
		t.Fatalf("URL = %q", item.URL)
	}
	if len(store.keys) != 1 || store.keys[0] != "chatRooms/room-1/u-big.jpeg" {
		t.Fatalf("keys = %v", store.keys)
	}
}

func TestClassify_VoiceBecomesAudio(t *testing.T) {
	t.Parallel()
	resolver := &fakeResolver{data: map[string][]byte{"v1": []byte("ogg")}, mime: "audio/ogg"}
	classifier := newClassifier(resolver, &fakeUploader{})

	_, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Voice: &tgbotapi.Voice{FileID: "v1", FileUniqueID: "u-v1", MimeType: "audio/ogg"},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(items) != 1 || items[0].Category != content.CategoryAudio {
		t.Fatalf("items = %+v, want one audio", items)
	}
	if items[0].FileName != "u-v1.ogg" {
		t.Fatalf("FileName = %q, want u-v1.ogg", items[0].FileName)
	}
	if items[0].Extension != "ogg" {
		t.Fatalf("Extension = %q, want ogg", items[0].Extension)
	}
}

func TestClassify_DocumentKeepsName(t *testing.T) {
	t.Parallel()
	resolver := &fakeResolver{data: map[string][]byte{"d1": []byte("pdf")}, mime: "application/pdf"}
	classifier := newClassifier(resolver, &fakeUploader{})

	_, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "d1", FileUniqueID: "u-d1", FileName: "invoice.pdf", MimeType: "application/pdf"},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(items) != 1 || items[0].FileName != "invoice.pdf" {
		t.Fatalf("items = %+v, want invoice.pdf", items)
	}
	if items[0].Extension != "pdf" {
		t.Fatalf("Extension = %q, want pdf", items[0].Extension)
	}
}

func TestClassify_AnimatedStickerUnsupported(t *testing.T) {
	t.Parallel()
	classifier := newClassifier(&fakeResolver{}, &fakeUploader{})

	_, _, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{
		Sticker: &tgbotapi.Sticker{FileID: "s1", IsAnimated: true},
	})
	if !errors.Is(err, content.ErrUnsupported) {
		t.Fatalf("Classify() error = %v, want ErrUnsupported", err)
	}
}

func TestClassify_TextOnly(t *testing.T) {
	t.Parallel()
	classifier := newClassifier(&fakeResolver{}, &fakeUploader{})

	text, items, err := classifier.Classify(context.Background(), "token", "room-1", &tgbotapi.Message{Text: " hello "})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q, want %q", text, "hello")
	}
	if len(items) != 0 {
		t.Fatalf("items = %+v, want none", items)
	}
}
