package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mtm-automation/files"
	"mtm-automation/pkg/mtm"
	"mtm-automation/prompt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sony/gobreaker/v2"
)

// Composer builds the prompt for a program day.
type Composer interface {
	Compose(ctx context.Context, day int) (*prompt.Prompt, error)
}

// Model generates images from a prompt and a base image.
type Model interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// DayImage describes a generated and saved day image.
type DayImage struct {
	Day       int    `json:"dayNumber"`
	Date      string `json:"date"`
	Prompt    string `json:"prompt"`
	FileID    string `json:"fileId"`
	FileName  string `json:"fileName"`
	FileURL   string `json:"fileUrl"`
	SizeBytes int    `json:"sizeBytes"`
	Warning   string `json:"warning,omitempty"`
}

// Config wires a Generator.
type Config struct {
	BaseImageFileID  string
	FolderID         string
	BreakerThreshold uint32 // Consecutive failures that stop a backfill; 0 means 3
}

// Generator renders, converts and stores day images.
type Generator struct {
	composer Composer
	model    Model
	folder   files.Folder
	program  mtm.Program
	cfg      Config
	logger   *slog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(composer Composer, model Model, folder files.Folder, program mtm.Program, cfg Config, logger *slog.Logger) *Generator {
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 3
	}
	return &Generator{composer: composer, model: model, folder: folder, program: program, cfg: cfg, logger: logger}
}

// GenerateDay renders the image for program day n and saves it as {n}.jpg,
// replacing any previous file of that name.
func (g *Generator) GenerateDay(ctx context.Context, n int) (*DayImage, error) {
	if n < 1 {
		return nil, &mtm.ValidationError{Field: "day number", Value: fmt.Sprint(n), Reason: "must be an integer greater than 0"}
	}
	if g.cfg.BaseImageFileID == "" || g.cfg.FolderID == "" {
		var missing []string
		if g.cfg.BaseImageFileID == "" {
			missing = append(missing, "GEMINI_BASE_IMAGE_FILE_ID")
		}
		if g.cfg.FolderID == "" {
			missing = append(missing, "DEFAULT_IMAGE_FOLDER_ID")
		}
		return nil, &mtm.ConfigError{Missing: missing}
	}

	p, err := g.composer.Compose(ctx, n)
	if err != nil {
		return nil, err
	}

	base, err := g.folder.Download(ctx, g.cfg.BaseImageFileID)
	if err != nil {
		return nil, mtm.Remote("download base image", err)
	}

	start := time.Now()
	res, err := g.model.Generate(ctx, Request{
		Prompt:      p.Text,
		BaseImage:   base,
		BaseMIME:    mimetype.Detect(base).String(),
		AspectRatio: AspectRatio,
	})
	if err != nil {
		return nil, mtm.Remote("generate image", err)
	}
	g.logger.Info("Image generated", "day", n, "images", len(res.Images), "duration_ms", time.Since(start).Milliseconds())

	jpg, err := ToJPEG(res.Images[0].Data, MaxThumbnailBytes)
	if err != nil {
		return nil, fmt.Errorf("convert day %d image: %w", n, err)
	}

	name := files.DayImageName(n)
	ref, err := g.folder.Replace(ctx, g.cfg.FolderID, name, "image/jpeg", jpg)
	if err != nil {
		return nil, mtm.Remote("save image", err)
	}

	return &DayImage{
		Day:       n,
		Date:      p.Date,
		Prompt:    p.Text,
		FileID:    ref.ID,
		FileName:  name,
		FileURL:   ref.URL,
		SizeBytes: len(jpg),
		Warning:   res.Warning,
	}, nil
}

// GenerateForDate renders the image for the program day of a YYYY-MM-DD date.
func (g *Generator) GenerateForDate(ctx context.Context, day string) (*DayImage, error) {
	n, err := g.program.Index(day)
	if err != nil {
		return nil, err
	}
	return g.GenerateDay(ctx, n)
}

// BackfillReport summarises a Backfill run.
type BackfillReport struct {
	From      int            `json:"from"`
	To        int            `json:"to"`
	Existing  []int          `json:"existing"`
	Generated []*DayImage    `json:"generated"`
	Failed    map[int]string `json:"failed,omitempty"`
	Stopped   bool           `json:"stopped"` // The breaker opened before the range was finished
}

// Backfill generates images for days in [from, to] that have no thumbnail in the
// image folder yet. Consecutive failures open a circuit breaker that ends the run.
func (g *Generator) Backfill(ctx context.Context, from, to int) (*BackfillReport, error) {
	if from < 1 || to < from {
		return nil, &mtm.ValidationError{Field: "range", Value: fmt.Sprintf("%d-%d", from, to), Reason: "must be ascending day numbers >= 1"}
	}
	listing, err := g.folder.List(ctx, g.cfg.FolderID)
	if err != nil {
		return nil, mtm.Remote("list image folder", err)
	}

	cb := gobreaker.NewCircuitBreaker[*DayImage](gobreaker.Settings{
		Name:    "gemini-backfill",
		Timeout: time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	report := &BackfillReport{From: from, To: to, Failed: map[int]string{}}
	for n := from; n <= to; n++ {
		if hasThumbnail(listing, n) {
			report.Existing = append(report.Existing, n)
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		img, err := cb.Execute(func() (*DayImage, error) {
			return g.GenerateDay(ctx, n)
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			g.logger.Warn("Stopping backfill after repeated failures", "next_day", n)
			report.Stopped = true
			break
		}
		if err != nil {
			g.logger.Error("Day image failed", "day", n, "error", err)
			report.Failed[n] = err.Error()
			continue
		}
		report.Generated = append(report.Generated, img)
	}
	return report, nil
}

func hasThumbnail(listing []mtm.FileRef, n int) bool {
	re := files.ThumbnailPattern(n)
	for _, f := range listing {
		if re.MatchString(f.Name) {
			return true
		}
	}
	return false
}
