// Package geoip resolves client IPs to a best-effort country and city.
package geoip

import (
	"context"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the resolved geography of a client IP.
type Location struct {
	Country string
	City    string
}

// Unknown is the sentinel returned for every failure mode: missing database,
// unparseable IP, lookup error or timeout. Resolution never blocks a redirect.
var Unknown = Location{Country: "Unknown", City: "Unknown"}

// Resolver maps an IP to a Location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) Location
}

// MaxMindResolver resolves against a local MaxMind City database.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// Open loads the MaxMind database at path. Callers that cannot open one
// should fall back to NoopResolver rather than failing startup.
func Open(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Resolve looks up the IP, honoring ctx cancellation. The local database
// lookup is fast, but a deadline still bounds it so a slow disk can never
// stall the caller.
func (r *MaxMindResolver) Resolve(ctx context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}

	type result struct {
		loc Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		record, err := r.reader.City(parsed)
		if err != nil {
			ch <- result{err: err}
			return
		}
		loc := Unknown
		if name, ok := record.Country.Names["en"]; ok && name != "" {
			loc.Country = name
		}
		if name, ok := record.City.Names["en"]; ok && name != "" {
			loc.City = name
		}
		ch <- result{loc: loc}
	}()

	select {
	case <-ctx.Done():
		return Unknown
	case res := <-ch:
		if res.err != nil {
			return Unknown
		}
		return res.loc
	}
}

// Close releases the underlying database handle.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// NoopResolver is used when no geolocation database is configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(context.Context, string) Location { return Unknown }
