package testutil

import (
	"strings"

	"github.com/HerbHall/skillpath/pkg/catalog"
)

// NewEntry returns a catalog Entry with sensible defaults, suitable for test
// fixtures. Override individual fields with options.
func NewEntry(opts ...func(*catalog.Entry)) catalog.Entry {
	e := catalog.Entry{
		ContentType: catalog.TypeLab,
		Title:       "Test Lab",
		Level:       "Introductory",
		URL:         "https://www.cloudskillsboost.google/catalog_lab/1",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithTitle sets the entry title and derives a matching URL.
func WithTitle(title string) func(*catalog.Entry) {
	return func(e *catalog.Entry) {
		e.Title = title
		e.URL = "https://www.cloudskillsboost.google/catalog/" + strings.ReplaceAll(strings.ToLower(title), " ", "-")
	}
}

// WithType sets the content type.
func WithType(contentType string) func(*catalog.Entry) {
	return func(e *catalog.Entry) { e.ContentType = contentType }
}

// WithLevel sets the level.
func WithLevel(level string) func(*catalog.Entry) {
	return func(e *catalog.Entry) { e.Level = level }
}

// Lab returns a Lab entry with the given title.
func Lab(title string) catalog.Entry {
	return NewEntry(WithTitle(title), WithType(catalog.TypeLab))
}

// Course returns a Course entry with the given title.
func Course(title string) catalog.Entry {
	return NewEntry(WithTitle(title), WithType(catalog.TypeCourse), WithLevel("Fundamental"))
}

// SampleCatalog returns a small catalog mixing labs and courses.
func SampleCatalog() []catalog.Entry {
	return []catalog.Entry{
		Lab("BigQuery Basics"),
		Lab("BigQuery Advanced"),
		Course("Intro to GCP"),
		Lab("Cloud Run 101"),
		Course("Cloud Logging Fundamentals"),
		Lab("Deploy to Cloud Run"),
	}
}
