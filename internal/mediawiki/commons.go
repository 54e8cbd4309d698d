// Package mediawiki resolves media filenames against the Commons file-info
// endpoint. Lookups fail soft: callers always receive an Image value, with
// the Error field set when no usable rendition exists or the upstream call
// failed.
package mediawiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/pkg/httpclient"
	"HeritageAtlas/pkg/logger"
)

// Thumbnail describes one reduced rendition of a file.
type Thumbnail struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// Image is the resolved media asset for a filename, or an error variant
// when Error is non-empty. "No image" is an expected outcome for entities
// without qualifying media, never a pipeline failure.
type Image struct {
	Filename    string     `json:"filename,omitempty"`
	CommonsURL  string     `json:"commons_url,omitempty"`
	OriginalURL string     `json:"original_url,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnails,omitempty"`
	Srcset      []string   `json:"srcset,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Service is the Commons media resolver.
type Service struct {
	http *httpclient.Client
	cfg  config.CommonsConfig
	log  *logger.Logger
}

// NewService creates a media resolver over the configured Commons host.
func NewService(httpClient *httpclient.Client, cfg config.CommonsConfig) *Service {
	return &Service{
		http: httpClient,
		cfg:  cfg,
		log:  logger.New("commons"),
	}
}

type fileInfoResponse struct {
	Preferred *struct {
		URL    string `json:"url"`
		Srcset []struct {
			Src   string  `json:"src"`
			Scale float64 `json:"scale"`
		} `json:"srcset"`
	} `json:"preferred"`
	Thumbnail *struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		URL    string `json:"url"`
	} `json:"thumbnail"`
}

// ImageByName resolves canonical URLs and rendition metadata for a Commons
// filename.
func (s *Service) ImageByName(ctx context.Context, name string) *Image {
	s.log.WithField("filename", name).Debug("resolving commons image")

	endpoint := fmt.Sprintf("%s/w/rest.php/v1/file/%s", s.cfg.BaseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.log.WithField("filename", name).WithError(err).Error("commons request build failed")
		return &Image{Error: "failed to fetch image"}
	}

	var info fileInfoResponse
	if err := s.http.DoJSON(req, &info); err != nil {
		s.log.WithField("filename", name).WithError(err).Error("commons fetch failed")
		return &Image{Error: "failed to fetch image"}
	}

	if info.Preferred == nil {
		s.log.WithField("filename", name).Warn("no preferred rendition for file")
		return &Image{Error: "no image available"}
	}

	srcset := make([]string, 0, len(info.Preferred.Srcset))
	for _, entry := range info.Preferred.Srcset {
		srcset = append(srcset, fmt.Sprintf("%s %gx", entry.Src, entry.Scale))
	}

	img := &Image{
		Filename:    name,
		CommonsURL:  fmt.Sprintf("%s/wiki/File:%s", s.cfg.BaseURL, url.PathEscape(name)),
		OriginalURL: info.Preferred.URL,
		Srcset:      srcset,
	}
	if info.Thumbnail != nil {
		img.Thumbnail = &Thumbnail{
			Width:  info.Thumbnail.Width,
			Height: info.Thumbnail.Height,
			URL:    info.Thumbnail.URL,
		}
	}
	return img
}
