// Package fetcher opens data sources (HTTP, FTP and local files) and parses
// delimited and XLSX tables.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Opener opens a data source by location.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Source dispatches a location to the HTTP fetcher, the FTP fetcher or the
// local filesystem based on its scheme.
type Source struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// NewSource creates a Source with default HTTP and FTP fetchers.
func NewSource() *Source {
	return &Source{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

// Open returns a reader for location. The caller must close it.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return s.HTTP.Download(ctx, location)
	case strings.HasPrefix(location, "ftp://"):
		return s.FTP.Download(ctx, location)
	case location == "":
		return nil, eris.New("fetcher: empty location")
	}

	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
