package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// MIME types of payloads handled by the recorder and player.
const (
	MIMEWAV  = "audio/wav"
	MIMEMPEG = "audio/mpeg"
)

// EncodeDataURI returns a base64 data URI carrying data as mediaType.
func EncodeDataURI(mediaType string, data []byte) string {
	return dataurl.New(data, mediaType).String()
}

// DecodeDataURI returns the bare content type and decoded bytes of a data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, errors.New("not a data uri")
	}
	du, err := dataurl.DecodeString(uri)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	if len(du.Data) == 0 {
		return "", nil, errors.New("data uri carries no data")
	}
	return NormalizeMIME(du.ContentType()), du.Data, nil
}

// NormalizeMIME folds common aliases onto MIMEWAV and MIMEMPEG.
func NormalizeMIME(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch mediaType {
	case "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return MIMEWAV
	case "audio/mp3", "audio/mpeg3", "audio/x-mpeg":
		return MIMEMPEG
	default:
		return mediaType
	}
}
