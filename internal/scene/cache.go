package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrEmptyDescription is returned when there is nothing to classify
var ErrEmptyDescription = errors.New("empty scene description")

// Background is a generated scene image shared by every adventure in the same category
type Background struct {
	ID          string    `json:"id"`
	SceneHash   string    `json:"sceneHash"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`
	ImageKey    string    `json:"imageKey"`
	ImageURL    string    `json:"imageUrl"`
	ImagePrompt string    `json:"imagePrompt"`
	UsageCount  int       `json:"usageCount"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

// Store persists backgrounds and the adventure to background pointer
type Store interface {
	GetBackground(ctx context.Context, hash string) (*Background, bool, error)
	// CreateBackground inserts bg unless the hash already exists, in which case
	// the stored row is returned with created=false.
	CreateBackground(ctx context.Context, bg *Background) (stored *Background, created bool, err error)
	TouchBackground(ctx context.Context, hash string, at time.Time) (*Background, error)
	SetAdventureScene(ctx context.Context, adventureID, hash string) error
}

// ImageGenerator turns a prompt into PNG bytes
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ObjectStore persists image bytes and returns a public URL
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Options configures a Cache
type Options struct {
	ImagesPerMinute int
	ImageTimeout    time.Duration
}

// Resolution is the outcome of resolving a description
type Resolution struct {
	Background *Background
	Hit        bool
}

// Cache is a content-addressed cache of scene backgrounds
type Cache struct {
	store   Store
	images  ImageGenerator
	objects ObjectStore
	limiter *rate.Limiter
	timeout time.Duration
	group   singleflight.Group
	tracer  trace.Tracer
	now     func() time.Time
}

// NewCache creates a scene cache
func NewCache(store Store, images ImageGenerator, objects ObjectStore, opts Options) *Cache {
	limit := rate.Inf
	if opts.ImagesPerMinute > 0 {
		limit = rate.Limit(float64(opts.ImagesPerMinute) / 60.0)
	}
	timeout := opts.ImageTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Cache{
		store:   store,
		images:  images,
		objects: objects,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		tracer:  otel.Tracer("github.com/qninhdt/ai-adventure/internal/scene"),
		now:     time.Now,
	}
}

// Lookup returns the cached background for a hash, or nil
func (c *Cache) Lookup(ctx context.Context, hash string) (*Background, error) {
	bg, found, err := c.store.GetBackground(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up background: %w", err)
	}
	if !found {
		return nil, nil
	}
	return bg, nil
}

// Resolve finds or generates the background for a description and points the adventure at it.
// On failure the adventure keeps its previous background.
func (c *Cache) Resolve(ctx context.Context, adventureID, description string) (*Resolution, error) {
	ctx, span := c.tracer.Start(ctx, "scene.resolve")
	defer span.End()

	res, err := c.resolve(ctx, adventureID, description)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("scene.hash", res.Background.SceneHash),
		attribute.String("scene.category", res.Background.Category),
		attribute.Bool("scene.hit", res.Hit),
	)
	return res, nil
}

func (c *Cache) resolve(ctx context.Context, adventureID, description string) (*Resolution, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	cls := Classify(description)

	bg, err := c.Lookup(ctx, cls.Hash)
	if err != nil {
		return nil, err
	}
	if bg != nil {
		return c.hit(ctx, adventureID, cls.Hash)
	}

	leader := false
	v, err, _ := c.group.Do(cls.Hash, func() (interface{}, error) {
		leader = true
		// a previous flight may have finished between the lookup and here
		if existing, err := c.Lookup(ctx, cls.Hash); err != nil || existing != nil {
			return &generated{bg: existing}, err
		}
		return c.generate(ctx, cls, description)
	})
	if err != nil {
		return nil, err
	}
	created := v.(*generated)
	if !leader || !created.created {
		// someone else paid for the image; count this as a use
		return c.hit(ctx, adventureID, cls.Hash)
	}

	if err := c.store.SetAdventureScene(ctx, adventureID, cls.Hash); err != nil {
		return nil, fmt.Errorf("failed to update adventure scene: %w", err)
	}
	return &Resolution{Background: created.bg}, nil
}

func (c *Cache) hit(ctx context.Context, adventureID, hash string) (*Resolution, error) {
	bg, err := c.store.TouchBackground(ctx, hash, c.now())
	if err != nil {
		return nil, fmt.Errorf("failed to record background use: %w", err)
	}
	if err := c.store.SetAdventureScene(ctx, adventureID, hash); err != nil {
		return nil, fmt.Errorf("failed to update adventure scene: %w", err)
	}
	return &Resolution{Background: bg, Hit: true}, nil
}

type generated struct {
	bg      *Background
	created bool
}

func (c *Cache) generate(ctx context.Context, cls Classification, description string) (*generated, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("image generation throttled: %w", err)
	}

	prompt := BuildImagePrompt(cls.Category, description)
	imgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	data, err := c.images.GenerateImage(imgCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate background image: %w", err)
	}
	log.Printf("scene: generated image category=%s bytes=%d took=%s", cls.Category, len(data), time.Since(start).Round(time.Millisecond))

	key := "backgrounds/" + cls.Hash + ".png"
	url, err := c.objects.Put(ctx, key, data, "image/png")
	if err != nil {
		return nil, fmt.Errorf("failed to store background image: %w", err)
	}

	now := c.now()
	stored, created, err := c.store.CreateBackground(ctx, &Background{
		ID:          uuid.New().String(),
		SceneHash:   cls.Hash,
		Category:    cls.Category,
		Keywords:    cls.Keywords,
		ImageKey:    key,
		ImageURL:    url,
		ImagePrompt: prompt,
		UsageCount:  1,
		CreatedAt:   now,
		LastUsedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save background: %w", err)
	}
	return &generated{bg: stored, created: created}, nil
}
