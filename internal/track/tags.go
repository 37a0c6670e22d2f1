package track

import (
	"encoding/base64"
	"fmt"

	"github.com/bogem/id3v2"
)

// isbnFrameDescription is the TXXX description used for the custom ISBN frame.
const isbnFrameDescription = "isbn"

// Tags holds the ID3 fields bindery reads and writes.
type Tags struct {
	Title  string
	Author string
	ISBN   string
}

// ReadTags extracts title, author, and the custom ISBN frame from an MP3
// file. A missing or tagless file yields zero values, not an error.
func ReadTags(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, fmt.Errorf("open id3 tags: %w", err)
	}
	defer tag.Close()

	tags := Tags{
		Title:  tag.Title(),
		Author: tag.Artist(),
	}

	for _, framer := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		udt, ok := framer.(id3v2.UserDefinedTextFrame)
		if !ok || udt.Description != isbnFrameDescription {
			continue
		}
		tags.ISBN = decodeISBN(udt.Value)
		break
	}
	return tags, nil
}

// WriteTags deletes every existing frame and writes title, author, and the
// obfuscated ISBN frame from scratch.
func WriteTags(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tags: %w", err)
	}
	defer tag.Close()

	tag.DeleteAllFrames()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Author != "" {
		tag.SetArtist(tags.Author)
	}
	if tags.ISBN != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: isbnFrameDescription,
			Value:       ObfuscateISBN(tags.ISBN),
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tags: %w", err)
	}
	return nil
}

// ObfuscateISBN base64-encodes the ISBN. This is casual-inspection
// deterrence, not cryptographic protection.
func ObfuscateISBN(isbn string) string {
	return base64.StdEncoding.EncodeToString([]byte(isbn))
}

// decodeISBN reverses ObfuscateISBN, accepting legacy plaintext values from
// masters written before obfuscation was introduced.
func decodeISBN(value string) string {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return value
	}
	return string(decoded)
}
