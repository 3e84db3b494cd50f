package index

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

const unknownValue = "Unknown"

// RecordProfile is the typed view of a record's attribute map used for
// document rendering.
type RecordProfile struct {
	Name            string `mapstructure:"name"`
	Species         string `mapstructure:"species"`
	Breed           string `mapstructure:"breed"`
	Age             string `mapstructure:"age"`
	AgeCategory     string `mapstructure:"age_category"`
	Sex             string `mapstructure:"sex"`
	Size            string `mapstructure:"size"`
	Color           string `mapstructure:"color"`
	Weight          string `mapstructure:"weight"`
	Declawed        string `mapstructure:"declawed"`
	ReferenceNumber string `mapstructure:"reference_number"`
}

// Renderer turns persisted items into index documents.
type Renderer struct {
	// Organization names the shelter in the adoption sections.
	Organization string
	// Status is the availability wording used for every listed record.
	Status string
}

// NewRenderer creates a renderer with the default wording.
func NewRenderer(organization string) *Renderer {
	if organization == "" {
		organization = "the shelter"
	}
	return &Renderer{Organization: organization, Status: "available"}
}

// DecodeProfile decodes a record's attributes into a RecordProfile.
func DecodeProfile(attrs domain.Attributes) (RecordProfile, error) {
	var p RecordProfile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]string(attrs)); err != nil {
		return p, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return p, nil
}

// RenderRecord builds the document for a record.
func (r *Renderer) RenderRecord(rec *domain.Record) (Document, error) {
	p, err := DecodeProfile(rec.Attributes)
	if err != nil {
		return Document{}, err
	}
	if p.ReferenceNumber == "" {
		p.ReferenceNumber = rec.ExternalReference
	}

	name := orUnknown(p.Name)
	species := orUnknown(p.Species)
	age := p.Age
	if age == "" {
		age = p.AgeCategory
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - %s for Adoption\n\n", name, species)

	b.WriteString("## Basic Information\n")
	writeField(&b, "Name", p.Name)
	writeField(&b, "Species", p.Species)
	writeField(&b, "Breed", p.Breed)
	writeField(&b, "Age", age)
	writeField(&b, "Sex", p.Sex)
	writeField(&b, "Size", p.Size)
	writeField(&b, "Color", p.Color)
	if p.Weight != "" {
		writeField(&b, "Weight", p.Weight)
	}
	if p.Declawed != "" {
		writeField(&b, "Declawed", p.Declawed)
	}
	writeField(&b, "Reference Number", p.ReferenceNumber)

	if rec.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n%s\n", rec.Description)
	}

	fmt.Fprintf(&b, "\n## Adoption Status\nThis %s is currently %s for adoption at %s.\n",
		strings.ToLower(species), r.Status, r.Organization)
	fmt.Fprintf(&b, "\n## How to Adopt\nTo meet %s, please visit %s during opening hours.\n",
		name, r.Organization)

	if len(rec.Images) > 0 {
		b.WriteString("\n## Photos\n")
		for _, img := range rec.Images {
			fmt.Fprintf(&b, "- %s\n", img)
		}
	}

	fmt.Fprintf(&b, "\n## Profile Link\nView full profile: %s\n", rec.SourceURL)

	return Document{
		ID:            DocumentID(domain.ItemTypeRecord, rec.ExternalReference),
		ItemType:      domain.ItemTypeRecord,
		ItemReference: rec.ExternalReference,
		Category:      rec.Category,
		Title:         fmt.Sprintf("%s - %s for Adoption", name, species),
		Content:       b.String(),
		SourceURL:     rec.SourceURL,
		ContentHash:   rec.ContentHash,
		Metadata: map[string]string{
			"name":    name,
			"species": species,
			"sex":     orUnknown(p.Sex),
			"size":    orUnknown(p.Size),
		},
	}, nil
}

// RenderContent builds the document for a content item. The normalized text
// is already a complete markdown document.
func (r *Renderer) RenderContent(item *domain.ContentItem) Document {
	return Document{
		ID:            DocumentID(domain.ItemTypeContent, item.SourceURL),
		ItemType:      domain.ItemTypeContent,
		ItemReference: item.SourceURL,
		Category:      item.Category,
		Title:         item.Title,
		Content:       item.NormalizedText,
		SourceURL:     item.SourceURL,
		ContentHash:   item.ContentHash,
	}
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "- **%s:** %s\n", label, orUnknown(value))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownValue
	}
	return s
}
