package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads        IssueCategory = "Roads"
	Lighting     IssueCategory = "Lighting"
	WaterSupply  IssueCategory = "Water Supply"
	Cleanliness  IssueCategory = "Cleanliness"
	PublicSafety IssueCategory = "Public Safety"
	Obstructions IssueCategory = "Obstructions"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
)

// FlagThreshold is the flag count at which an issue is hidden from
// proximity search.
const FlagThreshold = 3

// MaxIssuePhotos caps how many photos a single report may carry.
const MaxIssuePhotos = 3

var validCategories = map[IssueCategory]bool{
	Roads: true, Lighting: true, WaterSupply: true,
	Cleanliness: true, PublicSafety: true, Obstructions: true,
}

var validStatuses = map[IssueStatus]bool{
	StatusPending: true, StatusInProgress: true, StatusResolved: true,
}

// ParseCategory validates a raw category value against the fixed set.
func ParseCategory(raw string) (IssueCategory, bool) {
	c := IssueCategory(strings.TrimSpace(raw))
	return c, validCategories[c]
}

// ParseStatus validates a raw status value against the fixed set.
func ParseStatus(raw string) (IssueStatus, bool) {
	s := IssueStatus(strings.TrimSpace(raw))
	return s, validStatuses[s]
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude] —
// that order is what the 2dsphere index expects, swapping them puts
// issues in the wrong hemisphere.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a longitude/latitude pair.
func NewGeoPoint(lng, lat float64) (GeoPoint, error) {
	if lng < -180 || lng > 180 {
		return GeoPoint{}, fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	if lat < -90 || lat > 90 {
		return GeoPoint{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}, nil
}

// Lng returns the point's longitude.
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the point's latitude.
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[1]
}

// StatusLog is one entry of an issue's append-only activity log.
type StatusLog struct {
	Status    IssueStatus        `bson:"status" json:"status"`
	Comment   string             `bson:"comment" json:"comment"`
	UpdatedBy primitive.ObjectID `bson:"updatedBy" json:"updatedBy"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DefaultStatusComment is used when an admin transitions a status
// without providing a comment.
func DefaultStatusComment(status IssueStatus) string {
	return fmt.Sprintf("Status changed to %s", status)
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	Category     IssueCategory      `bson:"category" json:"category"`
	Location     GeoPoint           `bson:"location" json:"location"`
	ImageURLs    []string           `bson:"imageUrls" json:"imageUrls"`
	Status       IssueStatus        `bson:"status" json:"status"`
	Logs         []StatusLog        `bson:"logs" json:"logs"`
	FlaggedCount int                `bson:"flaggedCount" json:"flaggedCount"`
	IsFlagged    bool               `bson:"isFlagged" json:"isFlagged"`
	ReportedBy   primitive.ObjectID `bson:"reportedBy" json:"reportedBy"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EnsureIssueIndexes creates the 2dsphere index on location. Locations
// never change after creation, so this runs once at startup and the
// index is never rebuilt.
func EnsureIssueIndexes(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}
