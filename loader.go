package kernelfx

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	// Registered decoders. PNG, JPEG and GIF come from the standard library,
	// the rest from x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fetcher resolves an image reference to a decoded image. Fetch may be
// called off the render goroutine.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref string) (image.Image, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

// maxFetchBytes bounds remote and data-URI payloads.
const maxFetchBytes = 64 << 20

var errDataURI = errors.New("malformed data URI")

// DefaultFetcher resolves http and https URLs, data URIs and local file
// paths. Client nil uses http.DefaultClient.
type DefaultFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher.
func (f DefaultFetcher) Fetch(ctx context.Context, ref string) (image.Image, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return decodeImage(bytes.NewReader(data))
	default:
		file, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return decodeImage(file)
	}
}

func (f DefaultFetcher) fetchHTTP(ctx context.Context, ref string) (image.Image, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", ref, resp.Status)
	}
	return decodeImage(io.LimitReader(resp.Body, maxFetchBytes))
}

func decodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// decodeDataURI returns the payload of a data URI ("data:[<mediatype>][;base64],<data>").
func decodeDataURI(ref string) ([]byte, error) {
	rest := strings.TrimPrefix(ref, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errDataURI
	}
	if len(payload) > maxFetchBytes*4/3 {
		return nil, fmt.Errorf("%w: payload too large", errDataURI)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding.
			if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
				return nil, fmt.Errorf("%w: %v", errDataURI, err)
			}
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDataURI, err)
	}
	return []byte(s), nil
}

// DataURI encodes data as a base64 data URI of the given media type.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
