package field

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DataURI is a decoded RFC 2397 data URI.
type DataURI struct {
	MediaType string
	Data      []byte
}

// ParseDataURI decodes s of the form data:[<mediatype>][;base64],<data>.
func ParseDataURI(s string) (*DataURI, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("data URI has no payload separator")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" {
		mediaType = "text/plain"
	}

	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		// Browsers emit standard padding, hand-made URIs often omit it.
		payload = strings.TrimRight(strings.TrimSpace(payload), "=")
		decoded, err := base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid escaped payload: %w", err)
		}
		data = []byte(unescaped)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("data URI payload is empty")
	}

	return &DataURI{MediaType: mediaType, Data: data}, nil
}

// String encodes the data URI in base64 form.
func (d *DataURI) String() string {
	return "data:" + d.MediaType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// EncodeDataURI builds a base64 data URI for data of the given media type.
func EncodeDataURI(mediaType string, data []byte) string {
	return (&DataURI{MediaType: mediaType, Data: data}).String()
}
