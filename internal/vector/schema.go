package vector

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
)

// Property names of the transcript class.
const (
	PropPointID    = "pointId"
	PropVideoID    = "videoId"
	PropTitle      = "videoTitle"
	PropURL        = "videoUrl"
	PropSourceFile = "fileName"
	PropText       = "videoText"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	DeleteClass(ctx context.Context, className string) error
}

// ClassName maps a collection name such as "video-descriptions" onto a valid
// Weaviate class name ("VideoDescriptions").
func ClassName(collection string) string {
	parts := strings.FieldsFunc(collection, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}

	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "C" + name
	}
	return name
}

func transcriptClass(className string, metric index.Metric) *models.Class {
	return &models.Class{
		Class:       className,
		Description: "A transcribed video",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": string(metric),
		},
		Properties: []*models.Property{
			{Name: PropPointID, DataType: []string{"int"}},
			{Name: PropVideoID, DataType: []string{"text"}, Tokenization: "field"},
			{Name: PropTitle, DataType: []string{"text"}},
			{Name: PropURL, DataType: []string{"text"}, Tokenization: "field"},
			{Name: PropSourceFile, DataType: []string{"text"}, Tokenization: "field"},
			{Name: PropText, DataType: []string{"text"}},
		},
	}
}

// CreateCollection creates the transcript class for collection. Only cosine
// distance is supported.
func CreateCollection(ctx context.Context, client SchemaClient, collection string, metric index.Metric) error {
	if metric != index.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}
	return client.CreateClass(ctx, transcriptClass(ClassName(collection), metric))
}

// DropCollection deletes the class if it exists.
func DropCollection(ctx context.Context, client SchemaClient, collection string) error {
	className := ClassName(collection)
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return client.DeleteClass(ctx, className)
}
