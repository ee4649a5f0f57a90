package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mtm-automation/config"
	"mtm-automation/email"
	"mtm-automation/files"
	"mtm-automation/imagegen"
	"mtm-automation/pipeline"
	"mtm-automation/pkg/mtm"
	"mtm-automation/prompt"
	"mtm-automation/server"
	"mtm-automation/social"
	"mtm-automation/storage"
	"mtm-automation/trigger"
	"mtm-automation/validation"
	"mtm-automation/video"

	gcs "cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/youtube/v3"
)

const defaultLocalStorage = "./data"

var googleScopes = []string{
	youtube.YoutubeForceSslScope,
	drive.DriveScope,
	sheets.SpreadsheetsReadonlyScope,
	gmail.GmailSendScope,
}

// app holds every service built from the configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	program mtm.Program
	loc     *time.Location
	fs      afero.Fs

	youtube *video.Client
	drive   *drive.Service
	sheets  *sheets.Service
	gmail   *gmail.Service

	props   storage.Properties
	closers []io.Closer
}

// googleOptions picks the credentials: an OAuth refresh token, then GOOGLE_CREDENTIALS_JSON,
// then Application Default Credentials.
func googleOptions(ctx context.Context, cfg config.GoogleConfig) []option.ClientOption {
	if cfg.HasUserToken() {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       googleScopes,
		}
		ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		return []option.ClientOption{option.WithTokenSource(ts)}
	}
	if cfg.CredentialsJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)), option.WithScopes(googleScopes...)}
	}
	return []option.ClientOption{option.WithScopes(googleScopes...)}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	program, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, program: program, loc: loc, fs: afero.NewOsFs()}

	opts := googleOptions(ctx, cfg.Google)
	yt, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}
	a.youtube = video.NewClient(yt, logger)
	if a.drive, err = drive.NewService(ctx, opts...); err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	if a.sheets, err = sheets.NewService(ctx, opts...); err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if a.gmail, err = gmail.NewService(ctx, opts...); err != nil {
		return nil, fmt.Errorf("gmail client: %w", err)
	}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	sc := a.cfg.Storage
	switch backend := sc.Resolved(); backend {
	case "gcs":
		var opts []option.ClientOption
		if js := a.cfg.Google.CredentialsJSON; js != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(js)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		a.closers = append(a.closers, client)
		a.props = storage.NewGCS(client, sc.Bucket, a.logger)
	case "badger":
		db, err := storage.OpenBadger(sc.BadgerPath, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db)
		a.props = db
	case "local":
		path := sc.LocalPath
		if path == "" {
			path = defaultLocalStorage
			a.logger.Info("No STORAGE_BUCKET set, defaulting to local storage", "storage_path", path)
		}
		st, err := storage.NewLocal(a.fs, path, a.logger)
		if err != nil {
			return err
		}
		a.props = st
	default:
		return &mtm.ConfigError{Reason: fmt.Sprintf("unknown storage backend %q", backend)}
	}
	a.logger.Info("Property store ready", "backend", sc.Resolved())
	return nil
}

// Close releases storage clients.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close client", "error", err)
		}
	}
}

// folder serves thumbnails and day images from Drive, or from disk when a local root is set.
func (a *app) folder() files.Folder {
	if root := a.cfg.Drive.LocalRoot; root != "" {
		return files.NewLocalFolder(a.fs, root, a.logger)
	}
	return files.NewDriveFolder(a.drive, a.logger)
}

// emailProviderName resolves "auto" to the first provider with credentials.
func emailProviderName(cfg *config.Config) string {
	if p := cfg.Email.Provider; p != "" && p != "auto" {
		return p
	}
	switch {
	case cfg.Email.BrevoAPIKey != "":
		return "brevo"
	case cfg.Google.HasUserToken() || cfg.Google.CredentialsJSON != "":
		return "gmail"
	default:
		return "mock"
	}
}

func (a *app) sender() *email.Sender {
	ec := a.cfg.Email
	var provider email.Provider
	switch name := emailProviderName(a.cfg); name {
	case "brevo":
		provider = email.NewBrevoProvider(ec.BrevoAPIKey, ec.From, ec.FromName, a.logger)
	case "gmail":
		provider = email.NewGmailProvider(a.gmail, ec.From, ec.FromName, a.logger)
	default:
		a.logger.Info("Mock email mode enabled")
		provider = email.NewMockProvider(a.logger)
	}
	return email.New(provider, a.logger, ec.To)
}

func (a *app) generator() (*imagegen.Generator, error) {
	gc := a.cfg.Gemini
	if err := gc.Validate(); err != nil {
		return nil, err
	}
	if err := a.cfg.Prompt.Validate(); err != nil {
		return nil, err
	}
	var source prompt.VariantSource
	if id := a.cfg.Prompt.SpreadsheetID; id != "" {
		source = prompt.NewSheetsSource(a.sheets, id)
	} else {
		source = prompt.NewFileSource(a.fs, a.cfg.Prompt.VariantsFile)
	}
	model := imagegen.NewGemini(imagegen.GeminiOptions{
		APIKey:      gc.APIKey,
		Model:       gc.Model,
		Timeout:     gc.Timeout,
		MinInterval: gc.MinInterval,
	}, a.logger)
	return imagegen.NewGenerator(prompt.NewComposer(source, nil, a.program), model, a.folder(), a.program, imagegen.Config{
		BaseImageFileID:  gc.BaseImageFileID,
		FolderID:         gc.ImageFolderID,
		BreakerThreshold: gc.BreakerThreshold,
	}, a.logger), nil
}

func (a *app) backup() *pipeline.Backup {
	var gen pipeline.ImageGenerator
	if a.cfg.Gemini.GenerateMissing {
		g, err := a.generator()
		if err != nil {
			a.logger.Warn("Thumbnail generation disabled", "error", err)
		} else {
			gen = g
		}
	}
	yc := a.cfg.YouTube
	return pipeline.NewBackup(a.youtube, a.folder(), gen, a.program, pipeline.BackupConfig{
		ThumbFolderID:    a.cfg.Drive.ThumbFolderID,
		BackupPlaylistID: yc.BackupPlaylistID,
		Finder: video.BackupOptions{
			Mode:     yc.BackupMode,
			Window:   yc.UploadsWindow,
			MaxPages: yc.SearchPages,
		},
		GenerateMissing: a.cfg.Gemini.GenerateMissing,
	}, a.logger)
}

func (a *app) schedule() *pipeline.Schedule {
	yc := a.cfg.YouTube
	return pipeline.NewSchedule(a.youtube, a.folder(), a.program, pipeline.ScheduleConfig{
		ThumbFolderID: a.cfg.Drive.ThumbFolderID,
		StreamID:      yc.PersistentStreamID,
		Playlists:     yc.Playlists(),
		Bind: video.BindOptions{
			MaxAttempts:  uint(yc.BindAttempts),
			InitialDelay: yc.BindInitialDelay,
		},
	}, a.logger)
}

func (a *app) poster() (*social.Poster, error) {
	fc := a.cfg.Facebook
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return social.NewPoster(social.Options{
		PageID:      fc.PageID,
		AccessToken: fc.AccessToken,
		APIVersion:  fc.GraphAPIVersion,
		Timeout:     fc.Timeout(),
	}, a.logger), nil
}

func (a *app) social() *pipeline.Social {
	var poster pipeline.Poster
	if p, err := a.poster(); err != nil {
		a.logger.Warn("Facebook posting disabled", "error", err)
	} else {
		poster = p
	}
	return pipeline.NewSocial(a.youtube, storage.NewLedger(a.props, a.logger), poster, a.program, a.loc, a.logger)
}

func (a *app) triggers(notifier trigger.Notifier) *trigger.Handlers {
	deps := trigger.Deps{
		Backup:   a.backup(),
		Schedule: a.schedule(),
		Social:   a.social(),
		Notifier: notifier,
	}
	if g, err := a.generator(); err != nil {
		a.logger.Warn("Image trigger disabled", "error", err)
	} else {
		deps.Image = g
	}
	return trigger.New(deps, a.program, a.loc, a.logger)
}

func (a *app) server(handlers *trigger.Handlers, notifier server.Notifier) *server.Server {
	return server.New(&server.Config{
		Broadcasts: a.youtube,
		Notifier:   notifier,
		Triggers:   handlers,
		Logger:     a.logger,
		Token:      a.cfg.Server.WebToken,
		DefaultTZ:  a.cfg.Timezone,
		RateLimit:  a.cfg.Server.RateLimit,
	})
}

// requireFacebookApp checks the settings fb-token needs.
func requireFacebookApp(fc config.FacebookConfig) error {
	return validation.Config(struct {
		PageID          string  `prop:"FB_PAGE_ID" validate:"required"`
		GraphAPIVersion string  `prop:"FB_GRAPH_API_VERSION" validate:"required"`
		TimeoutSeconds  float64 `prop:"FACEBOOK_TIMEOUT" validate:"required,gt=0"`
		AppID           string  `prop:"FB_APP_ID" validate:"required"`
		AppSecret       string  `prop:"FB_APP_SECRET" validate:"required"`
	}{fc.PageID, fc.GraphAPIVersion, fc.TimeoutSeconds, fc.AppID, fc.AppSecret})
}
