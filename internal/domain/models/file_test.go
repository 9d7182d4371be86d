package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseFileKind(t *testing.T) {
	tests := []struct {
		in     string
		want   FileKind
		wantOK bool
	}{
		{"folder", KindFolder, true},
		{"file", KindFile, true},
		{"image", KindImage, true},
		{" image ", KindImage, true},
		{"", "", false},
		{"Folder", "", false},
		{"video", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFileKind(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseFileKind(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFileNode_Validate(t *testing.T) {
	valid := func() FileNode {
		return FileNode{
			ID:        primitive.NewObjectID(),
			UserID:    primitive.NewObjectID(),
			Name:      "a.png",
			Type:      KindImage,
			LocalPath: "0b9a",
		}
	}

	tests := []struct {
		name   string
		mutate func(n *FileNode)
		want   error
	}{
		{"valid image", func(n *FileNode) {}, nil},
		{"valid folder", func(n *FileNode) { n.Type = KindFolder; n.LocalPath = "" }, nil},
		{"missing id", func(n *FileNode) { n.ID = primitive.NilObjectID }, ErrNodeMissingID},
		{"missing owner", func(n *FileNode) { n.UserID = primitive.NilObjectID }, ErrNodeMissingOwner},
		{"blank name", func(n *FileNode) { n.Name = "  " }, ErrNodeMissingName},
		{"bad type", func(n *FileNode) { n.Type = "video" }, ErrNodeInvalidType},
		{"folder with content", func(n *FileNode) { n.Type = KindFolder }, ErrNodeFolderContent},
		{"file without content", func(n *FileNode) { n.Type = KindFile; n.LocalPath = "" }, ErrNodeMissingLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid()
			tt.mutate(&n)
			if got := n.Validate(); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerivativeKey(t *testing.T) {
	if got := DerivativeKey("abc", 250); got != "abc_250" {
		t.Errorf("DerivativeKey() = %q, want %q", got, "abc_250")
	}
}
