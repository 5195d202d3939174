// Package radar records operator positions and finds other operators nearby.
package radar

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/glitch/internal/auth"
)

const (
	// DefaultRadius is the search radius in meters.
	DefaultRadius = 5000.0
	// OnlineWindow is how recently a position must have been reported for
	// its owner to count as online.
	OnlineWindow = 15 * time.Minute

	earthRadius = 6371000.0
)

var (
	ErrInvalidLocation = errors.New("invalid location")
	ErrInvalidRadius   = errors.New("radius must be positive")
)

// Location is a WGS84 position in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside the valid ranges.
func (l Location) Validate() error {
	switch {
	case math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidLocation, l.Latitude)
	case math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidLocation, l.Longitude)
	}
	return nil
}

// Distance returns the great-circle distance to other in meters.
func (l Location) Distance(other Location) float64 {
	lat1, lat2 := l.Latitude*math.Pi/180, other.Latitude*math.Pi/180
	dLat := lat2 - lat1
	dLon := (other.Longitude - l.Longitude) * math.Pi / 180

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadius * math.Asin(math.Sqrt(min(1, h)))
}

// Contact is another operator within the search radius.
type Contact struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Location Location  `json:"location"`
	Distance float64   `json:"distance"`
	LastSeen time.Time `json:"lastSeen"`
	Online   bool      `json:"online"`
}

// Users finds accounts by email. auth.PGStore implements it.
type Users interface {
	UserByEmail(ctx context.Context, email string) (auth.User, error)
}

// Store persists positions.
type Store interface {
	UpdateLocation(ctx context.Context, userID int64, loc Location) error
	// Nearby returns other users within radius meters of loc, closest first.
	Nearby(ctx context.Context, userID int64, loc Location, radius float64) ([]Contact, error)
}

// Service reports an operator's position and searches around it.
type Service struct {
	users  Users
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the clock used for the online window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users Users, store Store, opts ...Option) *Service {
	s := &Service{users: users, store: store, logger: logrus.New(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan records loc as the position of the operator with email and returns
// the other operators within radius meters, closest first. A non-positive
// radius is rejected.
func (s *Service) Scan(ctx context.Context, email string, loc Location, radius float64) ([]Contact, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if radius <= 0 || math.IsNaN(radius) {
		return nil, ErrInvalidRadius
	}

	user, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateLocation(ctx, user.ID, loc); err != nil {
		return nil, err
	}

	contacts, err := s.store.Nearby(ctx, user.ID, loc, radius)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range contacts {
		contacts[i].Online = now.Sub(contacts[i].LastSeen) <= OnlineWindow
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"radius":  radius,
		"found":   len(contacts),
	}).Info("Radar scan complete")

	if contacts == nil {
		contacts = []Contact{}
	}
	return contacts, nil
}
