// Package thumbnails renders fixed-width derivatives of uploaded images.
//
// A thumbnail job names a file and its owner. The worker loads the original
// bytes, resizes them to each width in models.ThumbnailWidths and writes
// each result next to the original under models.DerivativeKey. Rerunning a
// job overwrites the same keys.
package thumbnails

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"

	filestore "github.com/dalemusser/filesmanager/internal/app/store/files"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/jobrunner"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/disintegration/imaging"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	// Queue is the job queue thumbnail jobs are placed on.
	Queue = "thumbnails"
	// JobType identifies thumbnail jobs.
	JobType = "thumbnail.generate"
)

// Failure reasons recorded on the job. None of them is retried.
var (
	ErrMissingFileID = apierr.New(apierr.PipelineFailure, "Missing fileId")
	ErrMissingUserID = apierr.New(apierr.PipelineFailure, "Missing userId")
	ErrFileNotFound  = apierr.New(apierr.PipelineFailure, "File not found")
	ErrNotAnImage    = apierr.New(apierr.PipelineFailure, "File is not an image")
)

// Files looks up file metadata.
type Files interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileNode, error)
}

// Blobs reads originals and writes derivatives.
type Blobs interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
}

// Generator handles thumbnail jobs.
type Generator struct {
	files  Files
	blobs  Blobs
	logger *zap.Logger
}

// New creates a Generator.
func New(files Files, blobs Blobs, logger *zap.Logger) *Generator {
	return &Generator{files: files, blobs: blobs, logger: logger}
}

// Payload builds the job payload for a file.
func Payload(userID, fileID primitive.ObjectID) map[string]any {
	return map[string]any{
		"userId": userID.Hex(),
		"fileId": fileID.Hex(),
	}
}

// Handle is the jobrunner.Handler for JobType.
func (g *Generator) Handle(ctx context.Context, payload map[string]any) (map[string]any, error) {
	fileHex, _ := payload["fileId"].(string)
	if fileHex == "" {
		return nil, jobrunner.Permanent(ErrMissingFileID)
	}
	userHex, _ := payload["userId"].(string)
	if userHex == "" {
		return nil, jobrunner.Permanent(ErrMissingUserID)
	}

	node, err := g.lookup(ctx, fileHex, userHex)
	if err != nil {
		return nil, err
	}

	rc, err := g.blobs.Get(ctx, node.LocalPath)
	if err != nil {
		return nil, apierr.Wrap(apierr.PipelineFailure, "read original", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, apierr.Wrap(apierr.PipelineFailure, "read original", err)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, jobrunner.Permanent(apierr.Wrap(apierr.PipelineFailure, "decode image", err))
	}
	out, err := imaging.FormatFromExtension(format)
	if err != nil {
		out = imaging.PNG
	}

	written := make([]string, 0, len(models.ThumbnailWidths))
	for _, width := range models.ThumbnailWidths {
		key := models.DerivativeKey(node.LocalPath, width)
		if err := g.writeDerivative(ctx, src, width, out, key); err != nil {
			return nil, apierr.Wrap(apierr.PipelineFailure, fmt.Sprintf("thumbnail %d", width), err)
		}
		written = append(written, key)
	}

	g.logger.Info("thumbnails generated",
		zap.String("file_id", node.ID.Hex()),
		zap.String("format", format),
		zap.Strings("keys", written))

	return map[string]any{"keys": written}, nil
}

// lookup resolves the payload ids to an image owned by the payload user.
func (g *Generator) lookup(ctx context.Context, fileHex, userHex string) (*models.FileNode, error) {
	fileID, err := primitive.ObjectIDFromHex(fileHex)
	if err != nil {
		return nil, jobrunner.Permanent(ErrFileNotFound)
	}
	userID, err := primitive.ObjectIDFromHex(userHex)
	if err != nil {
		return nil, jobrunner.Permanent(ErrFileNotFound)
	}

	node, err := g.files.GetByID(ctx, fileID)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, jobrunner.Permanent(ErrFileNotFound)
	}
	if errors.Is(err, filestore.ErrInvalidNode) {
		return nil, jobrunner.Permanent(apierr.Wrap(apierr.PipelineFailure, "load file", err))
	}
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	if node.UserID != userID {
		return nil, jobrunner.Permanent(ErrFileNotFound)
	}
	if node.Type != models.KindImage {
		return nil, jobrunner.Permanent(ErrNotAnImage)
	}
	return node, nil
}

func (g *Generator) writeDerivative(ctx context.Context, src image.Image, width int, format imaging.Format, key string) error {
	dst := imaging.Resize(src, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return err
	}
	return g.blobs.Put(ctx, key, &buf, &storage.PutOptions{
		ContentType: "image/" + formatName(format),
	})
}

func formatName(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "jpeg"
	case imaging.GIF:
		return "gif"
	case imaging.TIFF:
		return "tiff"
	case imaging.BMP:
		return "bmp"
	default:
		return "png"
	}
}
