package storage

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"gopkg.in/yaml.v3"
)

// MetadataFile is the name of the metadata file in each image directory
const MetadataFile = "metadata.yaml"

// ErrNotFound is returned when no stored image has the requested ID
var ErrNotFound = errors.New("image not found")

// Storage handles local file storage for saved images
type Storage struct {
	rootPath string
}

// NewStorage creates a new storage instance
func NewStorage(rootPath string) *Storage {
	return &Storage{
		rootPath: rootPath,
	}
}

// Root returns the storage root folder
func (s *Storage) Root() string {
	return s.rootPath
}

// GenerateID generates a unique 8-character alphanumeric ID and creates its directory
func (s *Storage) GenerateID() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	const idLength = 8
	maxRetries := 100

	for i := 0; i < maxRetries; i++ {
		b := make([]byte, idLength)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		id := make([]byte, idLength)
		for j := 0; j < idLength; j++ {
			id[j] = charset[b[j]%byte(len(charset))]
		}

		idPath := filepath.Join(s.rootPath, string(id))
		if _, err := os.Stat(idPath); os.IsNotExist(err) {
			if err := os.MkdirAll(idPath, 0755); err != nil {
				return "", fmt.Errorf("failed to create directory: %w", err)
			}
			return string(id), nil
		}
	}

	return "", fmt.Errorf("failed to generate unique ID after %d attempts", maxRetries)
}

// SaveImage encodes img into the ID's directory. The format follows the
// filename's extension; JPEG output uses the given quality.
func (s *Storage) SaveImage(id string, img image.Image, filename string, quality int) (*types.OperationResult, error) {
	filename = cleanFilename(filename)
	if _, err := imaging.FormatFromFilename(filename); err != nil {
		filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jpeg"
	}

	imagePath := filepath.Join(s.rootPath, id, filename)
	if err := imaging.Save(img, imagePath, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat saved image: %w", err)
	}

	b := img.Bounds()
	return &types.OperationResult{
		Filename: filename,
		Width:    b.Dx(),
		Height:   b.Dy(),
		FileSize: info.Size(),
	}, nil
}

// cleanFilename keeps only the final path element so the image stays in its ID directory
func cleanFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch filename {
	case "", ".", "..", "/":
		return "image.jpeg"
	}
	return filename
}

// SaveMetadata saves metadata for an operation
func (s *Storage) SaveMetadata(id string, metadata *types.ImageMetadata) error {
	metadataPath := filepath.Join(s.rootPath, id, MetadataFile)

	if metadata.Version == "" {
		metadata.Version = "1.0"
	}
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = time.Now()
	}
	metadata.ID = id

	data, err := yaml.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads metadata for an operation
func (s *Storage) LoadMetadata(id string) (*types.ImageMetadata, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == ".." {
		return nil, ErrNotFound
	}
	metadataPath := filepath.Join(s.rootPath, id, MetadataFile)

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata types.ImageMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &metadata, nil
}

// ListImages lists all stored images, newest first
func (s *Storage) ListImages() ([]types.ImageInfo, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ImageInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	images := []types.ImageInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		metadata, err := s.LoadMetadata(id)
		if err != nil {
			// Skip entries without valid metadata
			continue
		}

		imagePath := ""
		if metadata.Result != nil && metadata.Result.Filename != "" {
			imagePath = s.GetImagePath(id, metadata.Result.Filename)
		}

		images = append(images, types.ImageInfo{
			ID:        id,
			Operation: metadata.Operation,
			Timestamp: metadata.Timestamp,
			FilePath:  imagePath,
			Filters:   metadata.Filters,
			Metadata:  metadata.Parameters,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Timestamp.After(images[j].Timestamp)
	})
	return images, nil
}

// GetImagePath returns the full path to an image
func (s *Storage) GetImagePath(id string, filename string) string {
	return filepath.Join(s.rootPath, id, filename)
}

// ImageToDataURL converts an image file to a base64 data URL.
// maxBytes of 0 disables the size check.
func ImageToDataURL(filePath string, maxBytes int64) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("image file too large (max %d bytes)", maxBytes)
	}

	mimeType := "image/png"
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".webp":
		mimeType = "image/webp"
	case ".gif":
		mimeType = "image/gif"
	case ".bmp":
		mimeType = "image/bmp"
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
