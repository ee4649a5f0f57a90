// Package video wraps the YouTube Data API and implements the backup, finished-stream
// and bind-retry logic built on top of it.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mtm-automation/pkg/mtm"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

// Client performs YouTube calls for the authorised channel.
type Client struct {
	svc    *youtube.Service
	logger *slog.Logger
}

// NewClient wraps svc.
func NewClient(svc *youtube.Service, logger *slog.Logger) *Client {
	return &Client{svc: svc, logger: logger}
}

// BroadcastSpec describes a broadcast to create.
type BroadcastSpec struct {
	Title       string
	Description string
	StartTime   string // RFC 3339
	Privacy     string
}

// StreamInfo describes an ingestion stream.
type StreamInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	StreamName string `json:"streamName"` // The stream key
	Address    string `json:"ingestionAddress"`
	Reusable   bool   `json:"reusable"`
}

func (c *Client) logCall(op string, start time.Time, err error, args ...any) {
	args = append(args, "op", op, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		c.logger.Warn("YouTube call failed", append(args, "error", err)...)
		return
	}
	c.logger.Debug("YouTube call completed", args...)
}

// ChannelID returns the id of the authorised channel.
func (c *Client) ChannelID(ctx context.Context) (string, error) {
	ch, err := c.mine(ctx, "id")
	if err != nil {
		return "", err
	}
	return ch.Id, nil
}

func (c *Client) mine(ctx context.Context, parts ...string) (*youtube.Channel, error) {
	start := time.Now()
	resp, err := c.svc.Channels.List(parts).Mine(true).Context(ctx).Do()
	c.logCall("channels.list", start, err)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("no channel for the authorised account")
	}
	return resp.Items[0], nil
}

// RecentUploads returns the newest limit items of the channel uploads playlist.
func (c *Client) RecentUploads(ctx context.Context, limit int) ([]mtm.VideoRef, error) {
	ch, err := c.mine(ctx, "contentDetails")
	if err != nil {
		return nil, err
	}
	if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil || ch.ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, nil
	}
	uploads := ch.ContentDetails.RelatedPlaylists.Uploads

	start := time.Now()
	resp, err := c.svc.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(uploads).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	c.logCall("playlistItems.list", start, err, "playlist_id", uploads)
	if err != nil {
		return nil, err
	}

	var videos []mtm.VideoRef
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.VideoId == "" {
			continue
		}
		id := item.Snippet.ResourceId.VideoId
		videos = append(videos, mtm.VideoRef{ID: id, URL: mtm.WatchURL(id), Title: item.Snippet.Title})
	}
	return videos, nil
}

// SearchUploads returns one page of the channel's videos ordered by upload date.
func (c *Client) SearchUploads(ctx context.Context, pageToken string) ([]mtm.VideoRef, string, error) {
	call := c.svc.Search.List([]string{"snippet"}).
		ForMine(true).
		Type("video").
		Order("date").
		MaxResults(50)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	start := time.Now()
	resp, err := call.Context(ctx).Do()
	c.logCall("search.list", start, err)
	if err != nil {
		return nil, "", err
	}

	var videos []mtm.VideoRef
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ref := mtm.VideoRef{ID: item.Id.VideoId, URL: mtm.WatchURL(item.Id.VideoId)}
		if item.Snippet != nil {
			ref.Title = item.Snippet.Title
		}
		videos = append(videos, ref)
	}
	return videos, resp.NextPageToken, nil
}

// ListBroadcasts returns one page of the channel's broadcasts.
func (c *Client) ListBroadcasts(ctx context.Context, pageToken string) ([]Broadcast, string, error) {
	call := c.svc.LiveBroadcasts.List([]string{"id", "snippet", "status"}).
		Mine(true).
		BroadcastType("all").
		MaxResults(50)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	start := time.Now()
	resp, err := call.Context(ctx).Do()
	c.logCall("liveBroadcasts.list", start, err)
	if err != nil {
		return nil, "", err
	}

	out := make([]Broadcast, 0, len(resp.Items))
	for _, item := range resp.Items {
		b := Broadcast{ID: item.Id}
		if item.Snippet != nil {
			b.Title = item.Snippet.Title
		}
		if item.Status != nil {
			b.LifeCycleStatus = item.Status.LifeCycleStatus
		}
		out = append(out, b)
	}
	return out, resp.NextPageToken, nil
}

// ListVideos fetches snippet, status and live details for up to 50 ids.
func (c *Client) ListVideos(ctx context.Context, ids []string) ([]Video, error) {
	start := time.Now()
	resp, err := c.svc.Videos.List([]string{"id", "snippet", "liveStreamingDetails", "status"}).
		Id(ids...).
		Context(ctx).
		Do()
	c.logCall("videos.list", start, err, "ids", len(ids))
	if err != nil {
		return nil, err
	}

	out := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := Video{ID: item.Id}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Description = item.Snippet.Description
		}
		if item.Status != nil {
			v.PrivacyStatus = item.Status.PrivacyStatus
		}
		if item.LiveStreamingDetails != nil {
			v.ActualEndTime = item.LiveStreamingDetails.ActualEndTime
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) snippet(ctx context.Context, videoID string) (*youtube.VideoSnippet, error) {
	start := time.Now()
	resp, err := c.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	c.logCall("videos.list", start, err, "video_id", videoID)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("video not found: %s", videoID)
	}
	return resp.Items[0].Snippet, nil
}

// VideoTitle returns the current title of a video.
func (c *Client) VideoTitle(ctx context.Context, videoID string) (string, error) {
	s, err := c.snippet(ctx, videoID)
	if err != nil {
		return "", err
	}
	return s.Title, nil
}

// UpdateTitleDescription rewrites title and description, keeping the other snippet fields.
func (c *Client) UpdateTitleDescription(ctx context.Context, videoID, title, description string) error {
	s, err := c.snippet(ctx, videoID)
	if err != nil {
		return err
	}
	s.Title = title
	s.Description = description

	start := time.Now()
	_, err = c.svc.Videos.Update([]string{"snippet"}, &youtube.Video{Id: videoID, Snippet: s}).Context(ctx).Do()
	c.logCall("videos.update", start, err, "video_id", videoID)
	return err
}

// SetThumbnail uploads image bytes as the custom thumbnail of a video or broadcast.
func (c *Client) SetThumbnail(ctx context.Context, videoID string, data []byte) error {
	mime := mimetype.Detect(data).String()

	start := time.Now()
	_, err := c.svc.Thumbnails.Set(videoID).
		Media(bytes.NewReader(data), googleapi.ContentType(mime)).
		Context(ctx).
		Do()
	c.logCall("thumbnails.set", start, err, "video_id", videoID, "mime", mime, "bytes", len(data))
	return err
}

// InsertBroadcast creates a scheduled broadcast that never starts or stops on its own.
func (c *Client) InsertBroadcast(ctx context.Context, spec BroadcastSpec) (string, error) {
	b := &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              spec.Title,
			Description:        spec.Description,
			ScheduledStartTime: spec.StartTime,
		},
		Status: &youtube.LiveBroadcastStatus{
			PrivacyStatus:           spec.Privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
		ContentDetails: &youtube.LiveBroadcastContentDetails{
			EnableAutoStart: false,
			EnableAutoStop:  false,
			ForceSendFields: []string{"EnableAutoStart", "EnableAutoStop"},
		},
	}

	start := time.Now()
	resp, err := c.svc.LiveBroadcasts.Insert([]string{"snippet", "status", "contentDetails"}, b).Context(ctx).Do()
	c.logCall("liveBroadcasts.insert", start, err, "title", spec.Title)
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}

// BindBroadcast attaches a broadcast to an ingestion stream.
func (c *Client) BindBroadcast(ctx context.Context, broadcastID, streamID string) error {
	start := time.Now()
	_, err := c.svc.LiveBroadcasts.Bind(broadcastID, []string{"id", "contentDetails"}).
		StreamId(streamID).
		Context(ctx).
		Do()
	c.logCall("liveBroadcasts.bind", start, err, "broadcast_id", broadcastID, "stream_id", streamID)
	return err
}

// AddToPlaylist appends a video to a playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, videoID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}

	start := time.Now()
	_, err := c.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
	c.logCall("playlistItems.insert", start, err, "playlist_id", playlistID, "video_id", videoID)
	return err
}

// InPlaylist reports whether a playlist already holds a video.
func (c *Client) InPlaylist(ctx context.Context, playlistID, videoID string) (bool, error) {
	start := time.Now()
	resp, err := c.svc.PlaylistItems.List([]string{"id"}).
		PlaylistId(playlistID).
		VideoId(videoID).
		MaxResults(1).
		Context(ctx).
		Do()
	c.logCall("playlistItems.list", start, err, "playlist_id", playlistID, "video_id", videoID)
	if err != nil {
		return false, err
	}
	return len(resp.Items) > 0, nil
}

// EnsureInPlaylist adds a video to a playlist unless it is already there.
// It reports whether an insert happened.
func (c *Client) EnsureInPlaylist(ctx context.Context, playlistID, videoID string) (bool, error) {
	present, err := c.InPlaylist(ctx, playlistID, videoID)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	if err := c.AddToPlaylist(ctx, playlistID, videoID); err != nil {
		if IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreatePersistentStream creates a reusable RTMP stream with variable resolution.
func (c *Client) CreatePersistentStream(ctx context.Context, title string) (*StreamInfo, error) {
	s := &youtube.LiveStream{
		Snippet: &youtube.LiveStreamSnippet{Title: title},
		Cdn: &youtube.CdnSettings{
			IngestionType: "rtmp",
			Resolution:    "variable",
			FrameRate:     "variable",
		},
		ContentDetails: &youtube.LiveStreamContentDetails{IsReusable: true},
	}

	start := time.Now()
	resp, err := c.svc.LiveStreams.Insert([]string{"snippet", "cdn", "contentDetails"}, s).Context(ctx).Do()
	c.logCall("liveStreams.insert", start, err, "title", title)
	if err != nil {
		return nil, err
	}
	info := streamInfo(resp)
	return &info, nil
}

// ListStreams returns the channel's ingestion streams with their keys.
func (c *Client) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	start := time.Now()
	resp, err := c.svc.LiveStreams.List([]string{"id", "snippet", "cdn", "contentDetails", "status"}).
		Mine(true).
		MaxResults(50).
		Context(ctx).
		Do()
	c.logCall("liveStreams.list", start, err)
	if err != nil {
		return nil, err
	}
	out := make([]StreamInfo, 0, len(resp.Items))
	for _, s := range resp.Items {
		out = append(out, streamInfo(s))
	}
	return out, nil
}

func streamInfo(s *youtube.LiveStream) StreamInfo {
	info := StreamInfo{ID: s.Id}
	if s.Snippet != nil {
		info.Title = s.Snippet.Title
	}
	if s.Status != nil {
		info.Status = s.Status.StreamStatus
	}
	if s.ContentDetails != nil {
		info.Reusable = s.ContentDetails.IsReusable
	}
	if s.Cdn != nil && s.Cdn.IngestionInfo != nil {
		info.StreamName = s.Cdn.IngestionInfo.StreamName
		info.Address = s.Cdn.IngestionInfo.IngestionAddress
	}
	return info
}
