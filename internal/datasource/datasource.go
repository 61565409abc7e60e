// Package datasource abstracts where the source extracts come from: local
// files for the normal batch run, HTTP for pulling a fresh extract straight
// from the data portal.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Source yields one readable byte stream per Open call.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// New builds a Source from a location string: http(s) URLs become HTTP
// sources, everything else is a local file path.
func New(location string) (Source, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("datasource: empty location")
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTP(location, HTTPConfig{}), nil
	}
	return NewFile(location), nil
}
