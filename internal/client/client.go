// Package client talks to the remote annotation service: video listing, frame
// preparation, region detection, annotation storage, export and transcription.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/bdougie/cropcurator/internal/models"
)

// ErrNotFound is matched by APIError values with status 404
var ErrNotFound = errors.New("not found")

// APIError is returned for any non-2xx response
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// errorBody matches the FastAPI error shape {"detail": "..."}
type errorBody struct {
	Detail any `json:"detail"`
}

// Client is a resty-backed implementation of the remote contract
type Client struct {
	http   *resty.Client
	base   string
	logger *slog.Logger
}

// New creates a client rooted at base (scheme://host:port); all calls go under /api
func New(base string, timeout time.Duration, logger *slog.Logger) *Client {
	base = strings.TrimRight(base, "/")
	rc := resty.New().
		SetBaseURL(base+"/api").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{http: rc, base: base, logger: logger}
}

// ResolveURL turns a service-relative media path such as /data/crops/x.jpg into an absolute URL
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.base + ref
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetError(&errorBody{})
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Op: op, Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body.Detail != nil {
		apiErr.Detail = fmt.Sprint(body.Detail)
	}
	c.logger.Debug("service returned error", "op", op, "status", apiErr.Status, "detail", apiErr.Detail)
	return apiErr
}

// ListVideos returns every video the service knows about
func (c *Client) ListVideos(ctx context.Context) ([]models.VideoRef, error) {
	var videos []models.VideoRef
	resp, err := c.request(ctx).SetResult(&videos).Get("/videos")
	if err := c.check("list videos", resp, err); err != nil {
		return nil, err
	}
	return videos, nil
}

// Frames prepares (if needed) and lists the frame images of a video.
// Media paths are returned as the service sent them; see ResolveURL.
func (c *Client) Frames(ctx context.Context, videoPath string) (models.FramesResponse, error) {
	var out models.FramesResponse
	resp, err := c.request(ctx).
		SetQueryParam("video_path", videoPath).
		SetResult(&out).
		Get("/frames")
	if err := c.check("get frames", resp, err); err != nil {
		return models.FramesResponse{}, err
	}
	return out, nil
}

// Progress reports frame preparation progress for a video as a percentage
func (c *Client) Progress(ctx context.Context, videoName string) (int, error) {
	var out models.ProgressResponse
	resp, err := c.request(ctx).
		SetPathParam("video", videoName).
		SetResult(&out).
		Get("/progress/{video}")
	if err := c.check("get progress", resp, err); err != nil {
		return 0, err
	}
	return out.Progress, nil
}

// ProcessRegion runs detection on a region of a frame
func (c *Client) ProcessRegion(ctx context.Context, req models.ProcessRequest) ([]models.DetectionCrop, error) {
	var out models.ProcessResponse
	resp, err := c.request(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/process")
	if err := c.check("process region", resp, err); err != nil {
		return nil, err
	}
	return out.Fish, nil
}

// Annotations lists the annotations stored for one frame of a video
func (c *Client) Annotations(ctx context.Context, videoName string, frameIndex int) ([]models.Annotation, error) {
	var out models.AnnotationsResponse
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"video_name":  videoName,
			"frame_index": strconv.Itoa(frameIndex),
		}).
		SetResult(&out).
		Get("/annotations")
	if err := c.check("get annotations", resp, err); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// SaveAnnotations stores crops under label for the video
func (c *Client) SaveAnnotations(ctx context.Context, req models.SaveRequest) (models.MutationResponse, error) {
	var out models.MutationResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/save")
	if err := c.check("save annotations", resp, err); err != nil {
		return models.MutationResponse{}, err
	}
	return out, nil
}

// DeleteAnnotations removes stored annotations
func (c *Client) DeleteAnnotations(ctx context.Context, req models.DeleteRequest) (models.MutationResponse, error) {
	var out models.MutationResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/delete_annotations")
	if err := c.check("delete annotations", resp, err); err != nil {
		return models.MutationResponse{}, err
	}
	return out, nil
}

// Export downloads a zip archive of the annotations of the given videos
func (c *Client) Export(ctx context.Context, videoNames []string) ([]byte, error) {
	resp, err := c.request(ctx).
		SetHeader("Accept", "application/zip").
		SetBody(models.ExportRequest{VideoNames: videoNames}).
		Post("/export")
	if err := c.check("export", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Transcribe generates a transcript; force overwrites a cached one
func (c *Client) Transcribe(ctx context.Context, req models.TranscribeRequest) ([]models.Segment, error) {
	var out models.TranscriptionResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).Post("/transcribe")
	if err := c.check("transcribe", resp, err); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

// Transcription returns the cached transcript of a video, possibly empty
func (c *Client) Transcription(ctx context.Context, videoName string) ([]models.Segment, error) {
	var out models.TranscriptionResponse
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"video_name": videoName,
			"t":          strconv.FormatInt(time.Now().UnixMilli(), 10),
		}).
		SetResult(&out).
		Get("/transcription")
	if err := c.check("get transcription", resp, err); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

// FetchMedia downloads a media file such as a frame image
func (c *Client) FetchMedia(ctx context.Context, ref string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.ResolveURL(ref))
	if err := c.check("fetch media", resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
