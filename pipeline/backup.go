package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"mtm-automation/files"
	"mtm-automation/imagegen"
	"mtm-automation/pkg/mtm"
	"mtm-automation/video"
)

// BackupVideos is the subset of the video client used by the backup run.
type BackupVideos interface {
	video.UploadSource
	VideoTitle(ctx context.Context, videoID string) (string, error)
	SetThumbnail(ctx context.Context, videoID string, data []byte) error
	UpdateTitleDescription(ctx context.Context, videoID, title, description string) error
	EnsureInPlaylist(ctx context.Context, playlistID, videoID string) (bool, error)
}

// ImageGenerator renders a missing day image.
type ImageGenerator interface {
	GenerateForDate(ctx context.Context, day string) (*imagegen.DayImage, error)
}

// BackupConfig wires the backup run.
type BackupConfig struct {
	ThumbFolderID    string
	BackupPlaylistID string
	Finder           video.BackupOptions
	GenerateMissing  bool
}

// BackupOptions are the inputs of one backup run.
type BackupOptions struct {
	Day    string `json:"day" validate:"required,ymd"`
	DryRun bool   `json:"dryRun"`
}

// BackupPlan is what a live run would write.
type BackupPlan struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   bool   `json:"thumbnail"`
}

// BackupResult reports one backup run.
type BackupResult struct {
	Outcome               Outcome     `json:"outcome"`
	OK                    bool        `json:"ok"`
	Day                   string      `json:"day"`
	Index                 int         `json:"index"`
	DryRun                bool        `json:"dryRun"`
	FoundBackup           bool        `json:"foundBackup"`
	Checked               int         `json:"checked"`
	FoundThumb            bool        `json:"foundThumb"`
	GeneratedThumb        bool        `json:"generatedThumb,omitempty"`
	VideoID               string      `json:"videoId,omitempty"`
	VideoURL              string      `json:"videoUrl,omitempty"`
	ThumbFileID           string      `json:"thumbFileId,omitempty"`
	AlreadyCanonicalTitle bool        `json:"alreadyCanonicalTitle"`
	Planned               *BackupPlan `json:"planned,omitempty"`
	AddedToPlaylist       bool        `json:"addedToPlaylist"`
	Errors                []string    `json:"errors,omitempty"`
}

// Backup renames the day's backup recording, attaches its thumbnail and files it in the backup playlist.
type Backup struct {
	videos    BackupVideos
	thumbs    Thumbnails
	generator ImageGenerator // nil disables generation
	program   mtm.Program
	cfg       BackupConfig
	logger    *slog.Logger
}

// NewBackup creates a backup pipeline. generator may be nil.
func NewBackup(videos BackupVideos, thumbs Thumbnails, generator ImageGenerator, program mtm.Program, cfg BackupConfig, logger *slog.Logger) *Backup {
	return &Backup{
		videos:    videos,
		thumbs:    thumbs,
		generator: generator,
		program:   program,
		cfg:       cfg,
		logger:    logger,
	}
}

func (b *Backup) checkConfig() error {
	var missing []string
	if b.cfg.ThumbFolderID == "" {
		missing = append(missing, "THUMB_FOLDER_ID")
	}
	if b.cfg.BackupPlaylistID == "" {
		missing = append(missing, "BACKUP_YT_PLAYLIST_ID")
	}
	if len(missing) > 0 {
		return &mtm.ConfigError{Missing: missing}
	}
	return nil
}

// Run processes the backup recording of opts.Day.
func (b *Backup) Run(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	day, index, err := dayInput(b.program, opts, opts.Day)
	if err != nil {
		return nil, err
	}
	if err := b.checkConfig(); err != nil {
		return nil, err
	}

	res := &BackupResult{OK: true, Day: opts.Day, Index: index, DryRun: opts.DryRun}
	log := b.logger.With("day", opts.Day, "index", index, "dry_run", opts.DryRun)

	match, err := video.FindBackup(ctx, b.videos, day, b.cfg.Finder, log)
	res.Checked = match.Checked
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, err
	}
	if !match.Found {
		log.Info("No backup video for day", "checked", match.Checked)
		res.Outcome = OutcomeNotFound
		return res, nil
	}
	res.FoundBackup = true
	res.VideoID = match.Video.ID
	res.VideoURL = match.Video.URL
	if res.VideoURL == "" {
		res.VideoURL = mtm.WatchURL(match.Video.ID)
	}

	thumb, err := b.thumbnail(ctx, opts, res, log)
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, err
	}
	if !thumb.Found {
		log.Warn("Backup found but thumbnail missing", "video_id", res.VideoID)
		res.OK = false
		res.Errors = append(res.Errors, ErrThumbnailNotFound)
		res.Outcome = OutcomePartial
		return res, nil
	}
	res.FoundThumb = true
	res.ThumbFileID = thumb.File.ID

	title := mtm.TitleFor(index, mtm.IsSunday(day))
	description := mtm.Description()

	current, err := b.videos.VideoTitle(ctx, res.VideoID)
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("videos.list", err)
	}
	res.AlreadyCanonicalTitle = current == title
	res.Planned = &BackupPlan{Title: title, Description: description, Thumbnail: true}

	if opts.DryRun {
		log.Info("Dry run, backup not modified", "video_id", res.VideoID, "title", title)
		res.Outcome = OutcomePlanned
		return res, nil
	}

	data, err := b.thumbs.Download(ctx, thumb.File.ID)
	if err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("download thumbnail", err)
	}
	if err := b.videos.SetThumbnail(ctx, res.VideoID, data); err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("thumbnails.set", err)
	}
	if err := b.videos.UpdateTitleDescription(ctx, res.VideoID, title, description); err != nil {
		res.OK = false
		res.Outcome = OutcomeFailed
		return res, mtm.Remote("videos.update", err)
	}

	added, err := b.videos.EnsureInPlaylist(ctx, b.cfg.BackupPlaylistID, res.VideoID)
	if err != nil {
		log.Warn("Failed to add backup to playlist", "playlist_id", b.cfg.BackupPlaylistID, "error", err)
		res.OK = false
		res.Errors = append(res.Errors, fmt.Sprintf("backup_playlist: %v", err))
		res.Outcome = OutcomePartial
		return res, nil
	}
	res.AddedToPlaylist = added

	log.Info("Backup video processed",
		"video_id", res.VideoID,
		"already_canonical", res.AlreadyCanonicalTitle,
		"added_to_playlist", added)
	res.Outcome = OutcomeDone
	return res, nil
}

// thumbnail looks up the day's thumbnail, generating one first when enabled.
func (b *Backup) thumbnail(ctx context.Context, opts BackupOptions, res *BackupResult, log *slog.Logger) (mtm.Thumbnail, error) {
	thumb, err := files.FindThumbnail(ctx, b.thumbs, b.program, b.cfg.ThumbFolderID, opts.Day)
	if err != nil || thumb.Found || opts.DryRun || !b.cfg.GenerateMissing || b.generator == nil {
		return thumb, err
	}

	log.Info("Thumbnail missing, generating day image")
	img, err := b.generator.GenerateForDate(ctx, opts.Day)
	if err != nil {
		// Generation is best effort; the run continues as if nothing was found.
		log.Warn("Day image generation failed", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("generate_image: %v", err))
		return thumb, nil
	}
	res.GeneratedThumb = true

	thumb, err = files.FindThumbnail(ctx, b.thumbs, b.program, b.cfg.ThumbFolderID, opts.Day)
	if err != nil || thumb.Found {
		return thumb, err
	}
	// The image folder may differ from the thumbnail folder.
	thumb.Found = true
	thumb.File = &mtm.FileRef{ID: img.FileID, Name: img.FileName, URL: img.FileURL}
	return thumb, nil
}
