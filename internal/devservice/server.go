package devservice

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/bdougie/cropcurator/internal/models"
)

// Server exposes a Store over the annotation service HTTP contract
type Server struct {
	store  *Store
	logger *slog.Logger
	frame  []byte
}

// NewServer builds the fiber app for store
func NewServer(store *Store, logger *slog.Logger) (*fiber.App, error) {
	frame, err := placeholderFrame()
	if err != nil {
		return nil, err
	}
	s := &Server{store: store, logger: logger, frame: frame}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(s.requestLogger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/videos", s.listVideos)
	api.Get("/frames", s.frames)
	api.Get("/progress/:video", s.progress)
	api.Post("/process", s.process)
	api.Get("/annotations", s.annotations)
	api.Post("/save", s.save)
	api.Post("/delete_annotations", s.deleteAnnotations)
	api.Post("/export", s.export)
	api.Post("/transcribe", s.transcribe)
	api.Get("/transcription", s.transcription)

	app.Get("/data/*", s.media)
	app.Get("/static/*", s.media)
	return app, nil
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	err := c.Next()

	status := c.Response().StatusCode()
	attrs := []any{
		"request_id", requestID,
		"method", c.Method(),
		"uri", c.OriginalURL(),
		"status", status,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil:
		s.logger.Error("request failed", append(attrs, "error", err)...)
	case status >= 500:
		s.logger.Error("request completed with server error", attrs...)
	case status >= 400:
		s.logger.Warn("request completed with client error", attrs...)
	default:
		s.logger.Debug("request completed", attrs...)
	}
	return err
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

func (s *Server) listVideos(c *fiber.Ctx) error {
	return c.JSON(s.store.Videos())
}

func (s *Server) frames(c *fiber.Ctx) error {
	path := c.Query("video_path")
	if path == "" {
		return detail(c, fiber.StatusBadRequest, "video_path is required")
	}
	frames, ok := s.store.Frames(path)
	if !ok {
		return detail(c, fiber.StatusNotFound, "Video not found")
	}
	return c.JSON(models.FramesResponse{Frames: frames, Count: len(frames)})
}

func (s *Server) progress(c *fiber.Ctx) error {
	return c.JSON(models.ProgressResponse{Progress: s.store.Progress(c.Params("video"))})
}

func (s *Server) process(c *fiber.Ctx) error {
	var req models.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Cannot parse process request: "+err.Error())
	}
	if !strings.HasPrefix(req.FrameURL, "/static/frames/") {
		return detail(c, fiber.StatusBadRequest, "Invalid frame URL")
	}
	return c.JSON(models.ProcessResponse{Fish: s.store.Detect(req)})
}

func (s *Server) annotations(c *fiber.Ctx) error {
	frame, err := strconv.Atoi(c.Query("frame_index"))
	if err != nil {
		return detail(c, fiber.StatusUnprocessableEntity, "frame_index must be an integer")
	}
	return c.JSON(models.AnnotationsResponse{Annotations: s.store.Annotations(c.Query("video_name"), frame)})
}

func (s *Server) save(c *fiber.Ctx) error {
	var req models.SaveRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Cannot parse save request: "+err.Error())
	}
	n, err := s.store.Save(req)
	if err != nil {
		return detail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(models.MutationResponse{Message: "Saved " + strconv.Itoa(n) + " annotations", Count: n})
}

func (s *Server) deleteAnnotations(c *fiber.Ctx) error {
	var req models.DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Cannot parse delete request: "+err.Error())
	}
	n := s.store.Delete(req)
	return c.JSON(models.MutationResponse{Message: "Deleted " + strconv.Itoa(n) + " annotations", Count: n})
}

func (s *Server) export(c *fiber.Ctx) error {
	var req models.ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Cannot parse export request: "+err.Error())
	}
	if len(req.VideoNames) == 0 {
		return detail(c, fiber.StatusBadRequest, "No videos selected")
	}
	archive, err := s.store.Export(req.VideoNames)
	if err != nil {
		return detail(c, fiber.StatusInternalServerError, "Export failed: "+err.Error())
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="annotations_export.zip"`)
	return c.Send(archive)
}

func (s *Server) transcribe(c *fiber.Ctx) error {
	req := models.TranscribeRequest{Model: "large"}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "Cannot parse transcription request: "+err.Error())
	}
	if req.VideoName == "" {
		return detail(c, fiber.StatusBadRequest, "video_name is required")
	}
	return c.JSON(models.TranscriptionResponse{Segments: s.store.Transcript(req.VideoName, req.Model, req.Force)})
}

func (s *Server) transcription(c *fiber.Ctx) error {
	return c.JSON(models.TranscriptionResponse{Segments: s.store.CachedTranscript(c.Query("video_name"))})
}

// media serves the same placeholder image for every frame, crop and annotation path
func (s *Server) media(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(s.frame)
}

func placeholderFrame() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			img.Set(x, y, color.RGBA{R: 0, G: uint8(y * 255 / FrameHeight), B: uint8(96 + x*159/FrameWidth), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
