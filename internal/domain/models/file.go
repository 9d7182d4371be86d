// internal/domain/models/file.go
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileKind is the kind of a FileNode.
type FileKind string

const (
	KindFolder FileKind = "folder"
	KindFile   FileKind = "file"
	KindImage  FileKind = "image"
)

// ParseFileKind returns the kind named by s and whether it is recognized.
func ParseFileKind(s string) (FileKind, bool) {
	switch k := FileKind(strings.TrimSpace(s)); k {
	case KindFolder, KindFile, KindImage:
		return k, true
	}
	return "", false
}

// HasContent reports whether nodes of this kind carry stored bytes.
func (k FileKind) HasContent() bool {
	return k == KindFile || k == KindImage
}

// FileNode is a file, image or folder owned by a single user.
//
// ParentID is nil for nodes at the root. LocalPath is the storage key of
// the original bytes and is empty for folders.
type FileNode struct {
	ID        primitive.ObjectID  `bson:"_id"`
	UserID    primitive.ObjectID  `bson:"user_id"`
	Name      string              `bson:"name"`
	Type      FileKind            `bson:"type"`
	ParentID  *primitive.ObjectID `bson:"parent_id"`
	IsPublic  bool                `bson:"is_public"`
	LocalPath string              `bson:"local_path,omitempty"`
	CreatedAt time.Time           `bson:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

// Schema violations reported by FileNode.Validate.
var (
	ErrNodeMissingID       = errors.New("file node: missing id")
	ErrNodeMissingOwner    = errors.New("file node: missing owner")
	ErrNodeMissingName     = errors.New("file node: missing name")
	ErrNodeInvalidType     = errors.New("file node: invalid type")
	ErrNodeFolderContent   = errors.New("file node: folder has a content location")
	ErrNodeMissingLocation = errors.New("file node: missing content location")
)

// Validate checks the node against the FileNode schema.
func (n *FileNode) Validate() error {
	switch {
	case n.ID.IsZero():
		return ErrNodeMissingID
	case n.UserID.IsZero():
		return ErrNodeMissingOwner
	case strings.TrimSpace(n.Name) == "":
		return ErrNodeMissingName
	}
	if _, ok := ParseFileKind(string(n.Type)); !ok {
		return ErrNodeInvalidType
	}
	if n.Type.HasContent() {
		if n.LocalPath == "" {
			return ErrNodeMissingLocation
		}
	} else if n.LocalPath != "" {
		return ErrNodeFolderContent
	}
	return nil
}

// IsInRoot returns true if the node has no parent folder.
func (n *FileNode) IsInRoot() bool {
	return n.ParentID == nil
}

// ThumbnailWidths are the derivative widths generated for every image.
var ThumbnailWidths = []int{500, 250, 100}

// DerivativeKey returns the storage key of the thumbnail of the given width.
func DerivativeKey(key string, width int) string {
	return key + "_" + strconv.Itoa(width)
}
