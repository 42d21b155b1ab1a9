package model

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindText, nil
	case KindText, KindImage, KindAudio, KindFile:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown message type %q", ErrValidation, s)
	}
}

// File is the metadata of an object held by the blob provider.
type File struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	MIME string `json:"mime,omitempty"`
}

// Content is the body of a message. The set of implementations is closed:
// Text, Image, Audio and Document.
type Content interface {
	Kind() Kind
	sealed()
}

type Text struct{ Body string }

type Image struct{ File File }

type Audio struct{ File File }

type Document struct{ File File }

func (Text) Kind() Kind     { return KindText }
func (Image) Kind() Kind    { return KindImage }
func (Audio) Kind() Kind    { return KindAudio }
func (Document) Kind() Kind { return KindFile }

func (Text) sealed()     {}
func (Image) sealed()    {}
func (Audio) sealed()    {}
func (Document) sealed() {}

// NewContent builds the content variant for kind. Text ignores file; the other
// kinds require it.
func NewContent(kind Kind, body string, file *File) (Content, error) {
	switch kind {
	case KindText:
		return Text{Body: body}, nil
	case KindImage, KindAudio, KindFile:
		if file == nil || file.URL == "" {
			return nil, fmt.Errorf("%w: %s message needs a file", ErrValidation, kind)
		}
		switch kind {
		case KindImage:
			return Image{File: *file}, nil
		case KindAudio:
			return Audio{File: *file}, nil
		default:
			return Document{File: *file}, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, kind)
	}
}

// Body is the display text of c: the text itself or the file name.
func Body(c Content) string {
	switch v := c.(type) {
	case Text:
		return v.Body
	case Image:
		return v.File.Name
	case Audio:
		return v.File.Name
	case Document:
		return v.File.Name
	default:
		panic(fmt.Sprintf("model: unhandled content %T", c))
	}
}

// FileOf returns the attached file, or nil for text.
func FileOf(c Content) *File {
	switch v := c.(type) {
	case Text:
		return nil
	case Image:
		return &v.File
	case Audio:
		return &v.File
	case Document:
		return &v.File
	default:
		panic(fmt.Sprintf("model: unhandled content %T", c))
	}
}

// Preview is a one-line summary used by notifications.
func Preview(c Content) string {
	switch v := c.(type) {
	case Text:
		return v.Body
	case Image:
		return "[image] " + v.File.Name
	case Audio:
		return "[audio] " + v.File.Name
	case Document:
		return "[file] " + v.File.Name
	default:
		panic(fmt.Sprintf("model: unhandled content %T", c))
	}
}
