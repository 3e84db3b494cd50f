package extractor

// RecordSelectors describes the detail-page markup of a record. They are
// configuration, so a markup change upstream is a config change.
type RecordSelectors struct {
	Container          string            `yaml:"container"`
	Name               string            `yaml:"name"`
	DescriptionHeading string            `yaml:"description_heading"`
	DescriptionLabel   string            `yaml:"description_label"`
	DescriptionBody    string            `yaml:"description_body"`
	TableRow           string            `yaml:"table_row"`
	TableCell          string            `yaml:"table_cell"`
	ImagesContainer    string            `yaml:"images_container"`
	MainImage          string            `yaml:"main_image"`
	Thumbnails         string            `yaml:"thumbnails"`
	Labels             map[string]string `yaml:"labels"`
	BooleanAttributes  []string          `yaml:"boolean_attributes"`
	// ReferenceAttribute is the attribute holding the external reference.
	ReferenceAttribute string `yaml:"reference_attribute"`
	// ReferencePattern extracts the reference from the page URL when the
	// table lacks it. The first capture group is used.
	ReferencePattern string `yaml:"reference_pattern"`
}

// GeneralSelectors describes how general pages are reduced to text.
type GeneralSelectors struct {
	// Strip lists boilerplate removed before extraction.
	Strip []string `yaml:"strip"`
	// Main lists candidate content roots, first match wins.
	Main []string `yaml:"main"`
}

// Attribute keys produced by the default label map.
const (
	AttrName            = "name"
	AttrReferenceNumber = "reference_number"
	AttrSpecies         = "species"
	AttrAge             = "age"
	AttrAgeCategory     = "age_category"
	AttrSex             = "sex"
	AttrBreed           = "breed"
	AttrSize            = "size"
	AttrColor           = "color"
	AttrDeclawed        = "declawed"
	AttrWeight          = "weight"
)

// DefaultRecordSelectors matches the adoption profile pages of the source site.
func DefaultRecordSelectors() RecordSelectors {
	return RecordSelectors{
		Container:          "div.single-pet",
		Name:               "h2",
		DescriptionHeading: "h5",
		DescriptionLabel:   "description",
		DescriptionBody:    "p",
		TableRow:           "table tr",
		TableCell:          "td",
		ImagesContainer:    "div.pet--images",
		MainImage:          "img.rollover-parent",
		Thumbnails:         "div.pet--thumbnail img",
		Labels: map[string]string{
			"reference number": AttrReferenceNumber,
			"reference":        AttrReferenceNumber,
			"species":          AttrSpecies,
			"age":              AttrAge,
			"sex":              AttrSex,
			"breed":            AttrBreed,
			"size":             AttrSize,
			"color":            AttrColor,
			"colour":           AttrColor,
			"declawed":         AttrDeclawed,
			"weight":           AttrWeight,
		},
		BooleanAttributes:  []string{AttrDeclawed},
		ReferenceAttribute: AttrReferenceNumber,
		ReferencePattern:   `/animal/[\w-]+-(\d+)/?$`,
	}
}

// DefaultGeneralSelectors strips common site chrome and prefers semantic roots.
func DefaultGeneralSelectors() GeneralSelectors {
	return GeneralSelectors{
		Strip: []string{
			"script", "style", "noscript", "nav", "header", "footer", "aside",
			"form", "iframe", "svg", ".cookie-banner", "#cookie-notice", ".breadcrumbs",
		},
		Main: []string{"main", "article", ".entry-content", "#content", "body"},
	}
}

// WithDefaults fills unset selectors from the defaults.
func (s RecordSelectors) WithDefaults() RecordSelectors {
	d := DefaultRecordSelectors()
	if s.Container == "" {
		s.Container = d.Container
	}
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.DescriptionHeading == "" {
		s.DescriptionHeading = d.DescriptionHeading
	}
	if s.DescriptionLabel == "" {
		s.DescriptionLabel = d.DescriptionLabel
	}
	if s.DescriptionBody == "" {
		s.DescriptionBody = d.DescriptionBody
	}
	if s.TableRow == "" {
		s.TableRow = d.TableRow
	}
	if s.TableCell == "" {
		s.TableCell = d.TableCell
	}
	if s.ImagesContainer == "" {
		s.ImagesContainer = d.ImagesContainer
	}
	if s.MainImage == "" {
		s.MainImage = d.MainImage
	}
	if s.Thumbnails == "" {
		s.Thumbnails = d.Thumbnails
	}
	if len(s.Labels) == 0 {
		s.Labels = d.Labels
	}
	if s.BooleanAttributes == nil {
		s.BooleanAttributes = d.BooleanAttributes
	}
	if s.ReferenceAttribute == "" {
		s.ReferenceAttribute = d.ReferenceAttribute
	}
	if s.ReferencePattern == "" {
		s.ReferencePattern = d.ReferencePattern
	}
	return s
}

// WithDefaults fills unset selectors from the defaults.
func (s GeneralSelectors) WithDefaults() GeneralSelectors {
	d := DefaultGeneralSelectors()
	if len(s.Strip) == 0 {
		s.Strip = d.Strip
	}
	if len(s.Main) == 0 {
		s.Main = d.Main
	}
	return s
}
