// Package geo resolves source addresses against a MaxMind GeoIP2/GeoLite2 city database.
package geo

import (
	"fmt"
	"net"

	"FlowGuard/internal/model"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Locator implements model.GeoLocator. A Locator without a database answers UnknownGeo().
type Locator struct {
	reader *geoip2.Reader
}

// Open loads the database at path. An empty path yields a Locator without a database.
func Open(path string) (*Locator, error) {
	if path == "" {
		return &Locator{}, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &Locator{reader: reader}, nil
}

// OpenOrEmpty is like Open but degrades to a Locator without a database when loading fails.
func OpenOrEmpty(path string, logger *zap.Logger) *Locator {
	loc, err := Open(path)
	if err != nil {
		logger.Warn("GeoIP database unavailable, locations will be reported as Unknown", zap.Error(err))
		return &Locator{}
	}
	if loc.reader != nil {
		logger.Info("GeoIP database loaded", zap.String("path", path))
	}
	return loc
}

// Lookup resolves ip. Addresses missing from the database resolve to UnknownGeo() without error.
func (l *Locator) Lookup(ip net.IP) (model.GeoInfo, error) {
	if l == nil || l.reader == nil || ip == nil {
		return model.UnknownGeo(), nil
	}
	record, err := l.reader.City(ip)
	if err != nil {
		return model.UnknownGeo(), fmt.Errorf("geoip lookup for %s: %w", ip, err)
	}
	return fromCity(record), nil
}

func fromCity(record *geoip2.City) model.GeoInfo {
	info := model.UnknownGeo()
	if record == nil {
		return info
	}
	if record.Country.IsoCode != "" {
		info.CountryCode = record.Country.IsoCode
	}
	if name := record.Country.Names["en"]; name != "" {
		info.CountryName = name
	}
	if name := record.City.Names["en"]; name != "" {
		info.City = name
	}
	info.Latitude = record.Location.Latitude
	info.Longitude = record.Location.Longitude
	return info
}

// Close releases the database.
func (l *Locator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
